package relocate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mediasort/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2023", "03 - March", "2023-03-05")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureDirConcurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2024", "01 - January", "2024-01-01")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureDir(dir)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.DirExists(t, dir)
}

func TestEnsureDirBlockedByFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "2023")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := EnsureDir(filepath.Join(blocker, "03 - March"))
	require.Error(t, err)
	assert.True(t, errors.IsDirectoryCreateError(err))
}

func TestCopyAndRemove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0640))

	require.NoError(t, copyAndRemove(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestFindUniqueDestName(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(taken, nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_(1).png"), nil, 0644))

	got, err := findUniqueDestName(taken)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_(2).png"), got)
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dst := filepath.Join(dir, "sub", "a.jpg")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)

	// A missing source is reported unwrapped so callers can match it
	err := moveFile(src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFindUniqueDestNameExhausted(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(taken, nil, 0644))
	for i := 1; i <= maxRenameAttempts; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("a_(%d).png", i)), nil, 0644))
	}

	_, err := findUniqueDestName(taken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free name after 1000 attempts")
}
