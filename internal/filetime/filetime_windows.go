//go:build windows

package filetime

import (
	"os"
	"syscall"
	"time"
)

func created(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, ErrCreationTimeUnavailable
	}
	return time.Unix(0, data.CreationTime.Nanoseconds()), nil
}
