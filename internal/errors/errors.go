// Package errors provides standardized error handling for mediasort.
// It defines the error kinds a run can produce, the typed errors that carry
// them, and predicates the pipeline uses to decide what is fatal.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
	// Join combines several errors into one
	Join = errors.Join
)

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound  = NewFileError("file not found", "", FileNotFound, nil)
	ErrInvalidConfig = NewConfigError("invalid configuration", "", InvalidConfig, nil)
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidInput
	MetadataReadFailed
	DirectoryCreateFailed
	MoveFailed
	DestinationExists
	// Config error kinds
	InvalidConfig
	ConfigNotFound
)

var kindNames = map[ErrorKind]string{
	Unknown:               "unknown",
	FileNotFound:          "file_not_found",
	FileAccessDenied:      "file_access_denied",
	InvalidInput:          "invalid_input",
	MetadataReadFailed:    "metadata",
	DirectoryCreateFailed: "directory_create",
	MoveFailed:            "move",
	DestinationExists:     "destination_exists",
	InvalidConfig:         "invalid_config",
	ConfigNotFound:        "config_not_found",
}

// String returns the short name used in log fields
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

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

// FileError represents errors related to file operations
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

// KindOf returns the kind of the outermost typed error in err's chain that
// carries one. Plain wrappers are looked through.
func KindOf(err error) ErrorKind {
	for err != nil {
		var kind ErrorKind
		switch e := err.(type) {
		case *FileError:
			kind = e.Kind()
		case *ConfigError:
			kind = e.Kind()
		case *ApplicationError:
			kind = e.Kind()
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				if k := KindOf(inner); k != Unknown {
					return k
				}
			}
			return Unknown
		}
		if kind != Unknown {
			return kind
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}

func isFileKind(err error, kind ErrorKind) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == kind
	}
	return false
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	return isFileKind(err, FileNotFound)
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	return isFileKind(err, FileAccessDenied)
}

// IsInvalidInput checks if the error reports an unusable input path
func IsInvalidInput(err error) bool {
	return isFileKind(err, InvalidInput)
}

// IsMetadataError checks if the error came from reading file attributes
func IsMetadataError(err error) bool {
	return isFileKind(err, MetadataReadFailed)
}

// IsDirectoryCreateError checks if the error came from creating a destination directory
func IsDirectoryCreateError(err error) bool {
	return isFileKind(err, DirectoryCreateFailed)
}

// IsMoveError checks if the error came from moving a file or sidecar
func IsMoveError(err error) bool {
	return isFileKind(err, MoveFailed) || isFileKind(err, DestinationExists)
}

// IsDestinationExists checks if a move was refused because the target name is taken
func IsDestinationExists(err error) bool {
	return isFileKind(err, DestinationExists)
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsConfigError checks if the error is any configuration error.
// Configuration errors are the only ones that abort a run.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
