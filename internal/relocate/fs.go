package relocate

import (
	"io"
	"os"
	"sync"
	"syscall"

	"mediasort/internal/errors"
)

// EnsureDir creates dir and any missing parents. It is idempotent and safe
// to race: the call succeeds whenever dir exists as a directory afterwards.
func EnsureDir(dir string) error {
	err := os.MkdirAll(dir, 0755)
	if err == nil {
		return nil
	}
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return nil
	}
	return errors.NewFileError("cannot create directory", dir, errors.DirectoryCreateFailed, err)
}

// moveFile renames src to dst, copying across filesystems when a plain
// rename is not possible.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return errors.Wrapf(copyAndRemove(src, dst), "copy across devices to %s", dst)
}

func copyAndRemove(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}

// dirLocks serializes the collision check and rename per destination
// directory so two tasks never claim the same target name.
type dirLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDirLocks() *dirLocks {
	return &dirLocks{locks: make(map[string]*sync.Mutex)}
}

func (d *dirLocks) lock(dir string) func() {
	d.mu.Lock()
	m, ok := d.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		d.locks[dir] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
