package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"jpg", ".PNG", "tiff"})
	require.NoError(t, err)
	assert.Equal(t, "*.{jpg,png,tiff}", m.String())

	tests := map[string]bool{
		"IMG.JPG":            true,
		"photo.png":          true,
		"scan.TiFf":          true,
		"/abs/dir/x.jpg":     true,
		"archive.jpg.zip":    false,
		"photo.jpeg":         false,
		"jpg":                false,
		".jpg":               false,
		"notes.txt":          false,
		"dir.jpg/inside.txt": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, m.Match(name), name)
	}
}

func TestMatcherSingleExtension(t *testing.T) {
	m, err := NewMatcher([]string{"png"})
	require.NoError(t, err)
	assert.True(t, m.Match("a.png"))
	assert.False(t, m.Match("a.jpg"))
}

func TestMatcherRequiresExtensions(t *testing.T) {
	_, err := NewMatcher(nil)
	assert.Error(t, err)
}
