package filetime

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediasort/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.jpg")
	before := time.Now().Add(-time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("jpg"), 0644))

	got, err := Platform{}.Created(path)
	if errors.Is(err, ErrCreationTimeUnavailable) {
		t.Skip("filesystem does not record creation time")
	}
	require.NoError(t, err)
	assert.True(t, got.After(before), "creation time %v should be recent", got)
	assert.True(t, got.Before(time.Now().Add(time.Minute)))
	assert.Equal(t, time.Local, got.Location())
}

func TestPlatformCreatedMissingFile(t *testing.T) {
	_, err := Platform{}.Created(filepath.Join(t.TempDir(), "gone.jpg"))
	require.Error(t, err)
	if errors.Is(err, ErrCreationTimeUnavailable) {
		t.Skip("platform has no creation time support")
	}
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestSourceFunc(t *testing.T) {
	want := time.Date(2023, time.March, 5, 10, 0, 0, 0, time.UTC)
	var src Source = SourceFunc(func(path string) (time.Time, error) {
		assert.Equal(t, "/src/a.png", path)
		return want, nil
	})

	got, err := src.Created("/src/a.png")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
