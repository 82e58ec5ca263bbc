// Package filetime reads a file's creation (birth) time. Only true creation
// time is reported; when the platform or filesystem does not record one the
// lookup fails instead of falling back to modification time.
package filetime

import (
	"time"

	"mediasort/internal/errors"
)

// ErrCreationTimeUnavailable is returned when the filesystem does not report
// a creation time for the file.
var ErrCreationTimeUnavailable = errors.New("creation time not available")

// Source reports when a file was created.
type Source interface {
	Created(path string) (time.Time, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(path string) (time.Time, error)

// Created calls f(path).
func (f SourceFunc) Created(path string) (time.Time, error) {
	return f(path)
}

// Platform reads creation time from the operating system.
type Platform struct{}

// Created returns the birth time of path in local time.
func (Platform) Created(path string) (time.Time, error) {
	t, err := created(path)
	if err != nil {
		return time.Time{}, err
	}
	return t.Local(), nil
}
