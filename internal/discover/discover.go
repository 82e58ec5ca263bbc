// Package discover walks a source directory and collects the media files a
// run should relocate.
package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediasort/internal/errors"
	"mediasort/internal/log"
)

// FileTask is a single discovered file, identified by its absolute path.
type FileTask struct {
	Path string
}

// Options controls a walk.
type Options struct {
	Root       string
	Extensions []string
	Recursive  bool
	// MaxDepth bounds recursive walks; direct children of Root are depth 1.
	MaxDepth int
	// Exclude lists directories whose subtrees are never entered.
	Exclude []string
}

// depthLimit returns how deep the walk may go.
func (o Options) depthLimit() int {
	if !o.Recursive {
		return 1
	}
	if o.MaxDepth < 1 {
		return 1
	}
	return o.MaxDepth
}

// Discover returns every regular file under opts.Root whose extension is in
// opts.Extensions. Symbolic links are never followed. Entries that cannot be
// read are reported at warn level and skipped. The result order is
// unspecified and an empty result is not an error.
func Discover(ctx context.Context, opts Options) ([]FileTask, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.NewFileError("invalid source directory", opts.Root, errors.InvalidInput, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewFileError("source directory not accessible", root, errors.InvalidInput, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("source is not a directory", root, errors.InvalidInput, nil)
	}

	matcher, err := NewMatcher(opts.Extensions)
	if err != nil {
		return nil, errors.NewFileError("invalid extension set", root, errors.InvalidInput, err)
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if abs, err := filepath.Abs(dir); err == nil && abs != root {
			excluded[abs] = true
		}
	}

	limit := opts.depthLimit()
	var tasks []FileTask

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			log.LogWithFields(log.F("path", path), log.F("error", err.Error())).Warn("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		depth := depthOf(root, path)
		if d.IsDir() {
			if excluded[path] {
				log.LogWithFields(log.F("path", path)).Debug("Skipping excluded directory")
				return filepath.SkipDir
			}
			if depth >= limit {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			log.LogWithFields(log.F("path", path)).Debug("Skipping symbolic link")
			return nil
		}
		if !d.Type().IsRegular() || depth > limit {
			return nil
		}
		if matcher.Match(d.Name()) {
			tasks = append(tasks, FileTask{Path: path})
		}
		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.NewFileError("cannot read source directory", root, errors.InvalidInput, walkErr)
	}

	log.LogWithFields(
		log.F("source", root),
		log.F("pattern", matcher.String()),
		log.F("max_depth", limit),
		log.F("files", len(tasks)),
	).Info("Discovery finished")
	return tasks, nil
}

// depthOf returns how many path segments path sits below root.
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
