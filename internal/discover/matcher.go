package discover

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher reports whether a file name carries one of a set of extensions.
// Comparison is case-insensitive.
type Matcher struct {
	pattern string
	g       glob.Glob
}

// NewMatcher compiles the extension set into a single glob, "*.{jpg,png}".
// Extensions are expected without the leading dot.
func NewMatcher(extensions []string) (*Matcher, error) {
	if len(extensions) == 0 {
		return nil, fmt.Errorf("no extensions to match")
	}
	lower := make([]string, len(extensions))
	for i, ext := range extensions {
		lower[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	pattern := "*.{" + strings.Join(lower, ",") + "}"
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile extension pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, g: g}, nil
}

// Match reports whether the base name of name has a configured extension.
// Dot-files without a further extension never match.
func (m *Matcher) Match(name string) bool {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return false
	}
	return m.g.Match(strings.ToLower(base))
}

// String returns the compiled pattern.
func (m *Matcher) String() string {
	return m.pattern
}
