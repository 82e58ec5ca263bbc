// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
)

// CreateFiles writes files at the given slash-separated paths under root,
// creating parent directories. Each file holds its own path as content.
func CreateFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		CreateFilesWithContent(t, root, map[string]string{f: f})
	}
}

// CreateFilesWithContent creates test files with specific content
func CreateFilesWithContent(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// StripANSI removes terminal escape sequences from rendered output
func StripANSI(s string) string {
	return ansi.Strip(s)
}
