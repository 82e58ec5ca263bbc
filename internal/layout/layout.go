// Package layout maps a creation date onto the destination directory tree:
// root/YYYY/MM - MonthName/YYYY-MM-DD.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DayDir returns the leaf directory for a file created at t.
func DayDir(root string, t time.Time) string {
	return filepath.Join(root, YearDir(t), MonthDir(t), DayName(t))
}

// YearDir renders the year segment, e.g. "2023".
func YearDir(t time.Time) string {
	return fmt.Sprintf("%04d", t.Year())
}

// MonthDir renders the month segment, e.g. "03 - March".
func MonthDir(t time.Time) string {
	return fmt.Sprintf("%02d - %s", int(t.Month()), t.Month().String())
}

// DayName renders the day segment, e.g. "2023-03-05".
func DayName(t time.Time) string {
	return t.Format("2006-01-02")
}

// TargetName lowercases the extension of name and keeps everything else
// verbatim. Names without an extension are returned unchanged.
func TargetName(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext) + strings.ToLower(ext)
}

// Target returns the full destination path for a file with the given base
// name created at t.
func Target(root string, t time.Time, name string) string {
	return filepath.Join(DayDir(root, t), TargetName(name))
}
