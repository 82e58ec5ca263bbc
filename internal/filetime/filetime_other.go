//go:build !linux && !darwin && !windows

package filetime

import "time"

func created(string) (time.Time, error) {
	return time.Time{}, ErrCreationTimeUnavailable
}
