package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())

	err = Newf("formatted %s", "error")
	assert.NotNil(t, err)
	assert.Equal(t, "formatted error", err.Error())

	var appErr *ApplicationError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "formatted error", appErr.Error())
	assert.Equal(t, Unknown, appErr.Kind())
}

func TestWrapping(t *testing.T) {
	origErr := New("original error")
	wrappedErr := Wrap(origErr, "wrapped")
	assert.NotNil(t, wrappedErr)
	assert.Equal(t, "wrapped: original error", wrappedErr.Error())

	unwrappedErr := Unwrap(wrappedErr)
	assert.Equal(t, origErr, unwrappedErr)

	wrappedFormatted := Wrapf(origErr, "formatted %s", "wrapper")
	assert.NotNil(t, wrappedFormatted)
	assert.Equal(t, "formatted wrapper: original error", wrappedFormatted.Error())

	// Wrapping nil returns nil
	assert.Nil(t, Wrap(nil, "wrapper"))
	assert.Nil(t, Wrapf(nil, "formatted %s", "wrapper"))

	deepWrapped := Wrap(wrappedErr, "deeper")
	assert.Equal(t, "deeper: wrapped: original error", deepWrapped.Error())

	assert.True(t, Is(wrappedErr, origErr))
	assert.True(t, Is(deepWrapped, origErr))
}

func TestFileError(t *testing.T) {
	fileErr := NewFileError("cannot access", "/path/to/file", FileAccessDenied, nil)
	assert.NotNil(t, fileErr)
	assert.Equal(t, "cannot access: /path/to/file", fileErr.Error())
	assert.Equal(t, "/path/to/file", fileErr.Path())
	assert.Equal(t, FileAccessDenied, fileErr.Kind())

	origErr := fmt.Errorf("permission denied")
	fileErr = NewFileError("cannot access", "/path/to/file", FileAccessDenied, origErr)
	assert.Equal(t, "cannot access: /path/to/file: permission denied", fileErr.Error())
	assert.Equal(t, origErr, Unwrap(fileErr))

	assert.Equal(t, "file not found", ErrFileNotFound.Error())
	assert.Equal(t, FileNotFound, ErrFileNotFound.Kind())

	notFoundErr := NewFileError("file not found", "/missing/file", FileNotFound, nil)
	assert.True(t, IsFileNotFound(notFoundErr))
	assert.False(t, IsFileNotFound(fileErr))

	assert.True(t, IsFileAccessDenied(fileErr))
	assert.False(t, IsFileAccessDenied(notFoundErr))

	var fe *FileError
	assert.True(t, As(fileErr, &fe))
	assert.Equal(t, "/path/to/file", fe.Path())
}

func TestConfigError(t *testing.T) {
	configErr := NewConfigError("invalid value", "cache.workers", InvalidConfig, nil)
	assert.Equal(t, "invalid value: cache.workers", configErr.Error())
	assert.Equal(t, "cache.workers", configErr.Param())
	assert.Equal(t, InvalidConfig, configErr.Kind())

	origErr := fmt.Errorf("value out of range")
	configErr = NewConfigError("invalid value", "cache.workers", InvalidConfig, origErr)
	assert.Equal(t, "invalid value: cache.workers: value out of range", configErr.Error())
	assert.Equal(t, origErr, Unwrap(configErr))

	assert.Equal(t, "invalid configuration", ErrInvalidConfig.Error())
	assert.True(t, IsInvalidConfig(configErr))
	assert.False(t, IsInvalidConfig(New("some other error")))
}

func TestImageError(t *testing.T) {
	t.Run("index and path", func(t *testing.T) {
		err := NewImageError("decode failed", 4, "/pics/a.png", DecodeFailed, fmt.Errorf("bad header"))
		assert.Equal(t, "decode failed: #4 /pics/a.png: bad header", err.Error())
		assert.Equal(t, 4, err.Index())
		assert.Equal(t, "/pics/a.png", err.Path())
		assert.True(t, IsDecodeFailed(err))
		assert.False(t, IsInvalidArgument(err))
	})

	t.Run("index only", func(t *testing.T) {
		err := NewImageError("index out of range", 9, "", InvalidArgument, nil)
		assert.Equal(t, "index out of range: #9", err.Error())
		assert.True(t, IsInvalidArgument(err))
	})

	t.Run("sentinel", func(t *testing.T) {
		assert.Equal(t, "index out of range", ErrIndexOutOfRange.Error())
		assert.True(t, IsInvalidArgument(ErrIndexOutOfRange))
		assert.True(t, IsNoImages(ErrNoImages))
		assert.Equal(t, Closed, KindOf(ErrCacheClosed))
	})
}

func TestErrorChains(t *testing.T) {
	baseErr := errors.New("base error")
	fileErr := NewFileError("file error", "/path/to/file", FileNotFound, baseErr)
	imgErr := NewImageError("load failed", 2, "", DecodeFailed, fileErr)
	wrapped := Wrap(imgErr, "request")

	assert.Equal(t, "request: load failed: #2: file error: /path/to/file: base error", wrapped.Error())

	assert.True(t, Is(wrapped, baseErr))
	assert.True(t, Is(wrapped, fileErr))

	var fe *FileError
	assert.True(t, As(wrapped, &fe))
	assert.Equal(t, "/path/to/file", fe.Path())

	// The outermost specific kind wins
	assert.Equal(t, DecodeFailed, KindOf(wrapped))
	assert.True(t, HasKind(wrapped, FileNotFound))
	assert.True(t, IsFileNotFound(wrapped))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "invalid_argument", InvalidArgument.String())
	assert.Equal(t, "no_images", NoImages.String())
	assert.Equal(t, "kind(99)", ErrorKind(99).String())
}
