//go:build darwin

package filetime

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

func created(path string) (time.Time, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	sec, nsec := st.Btimespec.Unix()
	return time.Unix(sec, nsec), nil
}
