package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	serr "slideview/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single structured key/value pair attached to a log line
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

type options struct {
	out   io.Writer
	json  bool
	file  string
	level logrus.Level
}

// Option configures a Logger
type Option func(*options)

// WithOutput sends log lines to w instead of stdout
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithJSON switches to one JSON object per line
func WithJSON() Option {
	return func(o *options) {
		o.json = true
	}
}

// WithFile duplicates output into the file at path
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithLevel sets the minimum level (debug, info, warn, error)
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

// Logger writes leveled, structured log lines through logrus
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
	file   *os.File
}

// NewLogger creates a logger; without options it writes text lines to stdout
func NewLogger(opts ...Option) *Logger {
	o := &options{out: os.Stdout, level: logrus.DebugLevel}
	for _, opt := range opts {
		opt(o)
	}

	base := logrus.New()
	base.SetLevel(o.level)

	l := &Logger{base: base, fields: logrus.Fields{}}

	out := o.out
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.file, err)
		} else {
			l.file = f
			out = io.MultiWriter(o.out, f)
		}
	}
	base.SetOutput(out)

	if o.json {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		base.SetFormatter(&lineFormatter{})
	}
	return l
}

// Configure replaces the package level logger
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// Default returns the package level logger
func Default() *Logger {
	return logger
}

// SetDebug toggles debug output for every logger
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// IsDebug reports whether debug output is enabled
func IsDebug() bool {
	return isDebug.Load()
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// With returns a child logger carrying the extra fields
func (l *Logger) With(fields ...Field) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &Logger{base: l.base, fields: merged, file: l.file}
}

// WithError returns a child logger carrying the error and its typed details
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

// WithContext is kept for call sites that thread a context; no values are
// extracted from it yet.
func (l *Logger) WithContext(_ context.Context) *Logger {
	return l
}

func (l *Logger) Info(msg string)  { l.log(logrus.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(logrus.ErrorLevel, msg) }

func (l *Logger) Debug(msg string) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, msg)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// ErrorWithStack logs err at error level together with its typed details
func (l *Logger) ErrorWithStack(err error, msg string) {
	l.With(errorFields(err)...).log(logrus.ErrorLevel, msg)
}

// log must be called directly from the exported entry points so the caller
// depth stays fixed.
func (l *Logger) log(level logrus.Level, msg string) {
	entry := l.base.WithFields(l.fields)
	if _, file, line, ok := runtime.Caller(2); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

// Info logs a formatted message at info level
func Info(format string, args ...interface{}) {
	logger.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at info level
func Infof(format string, args ...interface{}) {
	logger.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Debug logs a message with arguments
func Debug(msg string, args ...interface{}) {
	if isDebug.Load() {
		logger.log(logrus.DebugLevel, withArgs(msg, args))
	}
}

// Debugf logs a formatted message
func Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		logger.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message with arguments
func Warn(msg string, args ...interface{}) {
	logger.log(logrus.WarnLevel, withArgs(msg, args))
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	logger.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

// Error logs an error message with arguments
func Error(msg string, args ...interface{}) {
	logger.log(logrus.ErrorLevel, withArgs(msg, args))
}

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) {
	logger.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// LogWithFields returns the package logger with extra fields
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the package logger carrying err and its typed details
func LogWithError(err error) *Logger {
	return logger.With(errorFields(err)...)
}

// LogError logs err with msg at error level
func LogError(err error, msg string) {
	logger.With(errorFields(err)...).log(logrus.ErrorLevel, msg)
}

func withArgs(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	if strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...)
	}
	return msg + ": " + fmt.Sprint(args...)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error()), F("error_kind", serr.KindOf(err).String())}

	var fe *serr.FileError
	if serr.As(err, &fe) && fe.Path() != "" {
		fields = append(fields, F("path", fe.Path()))
	}
	var ce *serr.ConfigError
	if serr.As(err, &ce) && ce.Param() != "" {
		fields = append(fields, F("param", ce.Param()))
	}
	var ie *serr.ImageError
	if serr.As(err, &ie) {
		if ie.Index() >= 0 {
			fields = append(fields, F("index", ie.Index()))
		}
		if ie.Path() != "" {
			fields = append(fields, F("path", ie.Path()))
		}
	}
	return fields
}

// lineFormatter renders "[time] LEVEL: message key=value ..."
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %s: %s", e.Time.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
