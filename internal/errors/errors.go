// Package errors provides standardized error handling for slideview.
// It defines common error kinds, typed errors for files, configuration and
// images, and helpers for consistent error creation and inspection.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package functions re-exported for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	// Image error kinds
	DecodeFailed
	UnsupportedFormat
	NoImages
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Cache error kinds
	InvalidArgument
	Cancelled
	Closed
)

var kindNames = map[ErrorKind]string{
	Unknown:           "unknown",
	FileNotFound:      "file_not_found",
	FileAccessDenied:  "file_access_denied",
	InvalidPath:       "invalid_path",
	DecodeFailed:      "decode_failed",
	UnsupportedFormat: "unsupported_format",
	NoImages:          "no_images",
	InvalidConfig:     "invalid_config",
	ConfigNotFound:    "config_not_found",
	InvalidArgument:   "invalid_argument",
	Cancelled:         "cancelled",
	Closed:            "closed",
}

// String returns a stable, log friendly name for the kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Common error values for frequently occurring conditions
var (
	ErrFileNotFound    = NewFileError("file not found", "", FileNotFound, nil)
	ErrInvalidConfig   = NewConfigError("invalid configuration", "", InvalidConfig, nil)
	ErrNoImages        = NewFileError("no supported image files found", "", NoImages, nil)
	ErrIndexOutOfRange = NewImageError("index out of range", -1, "", InvalidArgument, nil)
	ErrCacheClosed     = &ApplicationError{msg: "image cache is closed", kind: Closed}
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file and folder operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// ImageError represents a failure tied to one position of the image sequence.
// Index is -1 when the failure is not bound to a position.
type ImageError struct {
	ApplicationError
	index int
	path  string
}

// NewImageError creates a new image error
func NewImageError(msg string, index int, path string, kind ErrorKind, err error) *ImageError {
	return &ImageError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		index: index,
		path:  path,
	}
}

// Error returns the image error message
func (e *ImageError) Error() string {
	subject := e.path
	if e.index >= 0 {
		if subject != "" {
			subject = fmt.Sprintf("#%d %s", e.index, subject)
		} else {
			subject = fmt.Sprintf("#%d", e.index)
		}
	}
	if subject == "" {
		return e.ApplicationError.Error()
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.msg, subject, e.err)
	}
	return fmt.Sprintf("%s: %s", e.msg, subject)
}

// Index returns the sequence index associated with the error
func (e *ImageError) Index() int {
	return e.index
}

// Path returns the image path associated with the error
func (e *ImageError) Path() string {
	return e.path
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the kind of the first typed error in err's chain that
// carries a specific kind, or Unknown.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorKind }); ok && k.Kind() != Unknown {
			return k.Kind()
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}

// HasKind reports whether any error in err's chain has the given kind
func HasKind(err error, kind ErrorKind) bool {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorKind }); ok && k.Kind() == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileAccessDenied
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsNoImages checks if the error reports a folder without supported images
func IsNoImages(err error) bool {
	return HasKind(err, NoImages)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return HasKind(err, InvalidArgument)
}

// IsDecodeFailed checks if the error is an image decode failure
func IsDecodeFailed(err error) bool {
	return HasKind(err, DecodeFailed)
}

// IsCancelled checks if the error reports a superseded or cancelled load
func IsCancelled(err error) bool {
	return HasKind(err, Cancelled)
}
