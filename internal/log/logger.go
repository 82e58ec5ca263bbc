// Package log is the process-wide logging sink. It wraps logrus with the
// small leveled API the rest of mediasort uses and is configured once at
// startup by the command layer.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"mediasort/internal/errors"

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

// Logger writes leveled, structured log lines
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

type options struct {
	out    io.Writer
	json   bool
	file   string
	level  logrus.Level
	fields []Field
}

// Option configures a Logger
type Option func(*options)

// WithOutput sets the writer log lines go to
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile tees every line into the named file in addition to the output
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithLevel sets the minimum level that is written. Debug lines are
// additionally gated by SetDebug.
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

// WithFields attaches fields to every line the logger writes
func WithFields(fields ...Field) Option {
	return func(o *options) { o.fields = append(o.fields, fields...) }
}

// NewLogger creates a logger writing text lines to stderr unless options say otherwise
func NewLogger(opts ...Option) *Logger {
	l, err := build(opts...)
	if err != nil {
		// Fall back to the bare output when the file cannot be opened
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
	}
	return l
}

func build(opts ...Option) (*Logger, error) {
	o := options{out: os.Stderr, level: logrus.DebugLevel}
	for _, opt := range opts {
		opt(&o)
	}

	base := logrus.New()
	base.SetLevel(o.level)
	if o.json {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   true,
		})
	}

	l := &Logger{}
	out := o.out
	var err error
	if o.file != "" {
		var f *os.File
		f, err = os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = f
			out = io.MultiWriter(o.out, f)
		} else {
			err = fmt.Errorf("open log file %s: %w", o.file, err)
		}
	}
	base.SetOutput(out)
	data := make(logrus.Fields, len(o.fields))
	for _, f := range o.fields {
		data[f.Key] = f.Value
	}
	l.entry = logrus.NewEntry(base).WithFields(data)
	return l, err
}

// Configure replaces the process-wide logger
func Configure(opts ...Option) error {
	l, err := build(opts...)
	logger = l
	return err
}

// Close releases the log file of the process-wide logger, if any
func Close() error {
	if logger.file != nil {
		return logger.file.Close()
	}
	return nil
}

// SetDebug toggles debug output for every logger
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// With returns a logger that adds the given fields to every line
func (l *Logger) With(fields ...Field) *Logger {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file}
}

// WithContext attaches ctx to the underlying entry
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	return &Logger{entry: l.entry.WithContext(ctx), file: l.file}
}

// WithError adds the error and whatever typed detail it carries
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

// Info logs at info level
func (l *Logger) Info(msg string) {
	l.log(logrus.InfoLevel, msg)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Warn logs at warn level
func (l *Logger) Warn(msg string) {
	l.log(logrus.WarnLevel, msg)
}

// Error logs at error level
func (l *Logger) Error(msg string) {
	l.log(logrus.ErrorLevel, msg)
}

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// Debug logs only when debug output is enabled
func (l *Logger) Debug(msg string) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, msg)
	}
}

// Debugf logs a formatted message only when debug output is enabled
func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		l.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// log is always called directly from an exported method, so the caller of
// that method sits two frames up.
func (l *Logger) log(level logrus.Level, msg string) {
	entry := l.entry
	if _, file, line, ok := runtime.Caller(2); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error()), F("error_kind", errors.KindOf(err).String())}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	return fields
}

// Package-level helpers write through the process-wide logger.

func Info(msg string) {
	logger.log(logrus.InfoLevel, msg)
}

func Infof(format string, args ...interface{}) {
	logger.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func Warn(msg string) {
	logger.log(logrus.WarnLevel, msg)
}

func Error(msg string) {
	logger.log(logrus.ErrorLevel, msg)
}

func Errorf(format string, args ...interface{}) {
	logger.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// Debug logs a message when debug output is enabled
func Debug(msg string) {
	if isDebug.Load() {
		logger.log(logrus.DebugLevel, msg)
	}
}

// Debugf logs a formatted message when debug output is enabled
func Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		logger.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// LogWithFields returns the process-wide logger with fields attached
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the process-wide logger with error detail attached
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err at error level with msg
func LogError(err error, msg string) {
	l := logger.WithError(err)
	l.log(logrus.ErrorLevel, msg)
}
