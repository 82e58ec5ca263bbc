// Package watch keeps a source tree under observation and relocates media
// files as they arrive.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediasort/internal/config"
	"mediasort/internal/discover"
	"mediasort/internal/errors"
	"mediasort/internal/log"
	"mediasort/internal/pipeline"
	"mediasort/internal/relocate"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Options controls what is watched and when a file is considered complete.
type Options struct {
	Root       string
	Extensions []string
	Recursive  bool
	MaxDepth   int
	// Exclude lists directories that are never watched, usually the
	// destination when it lives inside the source.
	Exclude []string
	// Settle is the quiet period after the last write before a file is moved.
	Settle  time.Duration
	Workers int
	// OnResult is called after every relocation attempt.
	OnResult func(relocate.Result, error)
}

// Status is a snapshot of watcher activity.
type Status struct {
	Running        bool
	Directories    []string
	Pending        int
	FilesProcessed int
	FilesFailed    int
	LastActivity   time.Time
}

// Watcher monitors directories for new media files using fsnotify
type Watcher struct {
	opts      Options
	root      string
	limit     int
	matcher   *discover.Matcher
	excluded  map[string]bool
	relocator pipeline.Relocator
	fsWatcher *fsnotify.Watcher

	// path -> time of the last event seen for it
	pending map[string]time.Time

	mutex        sync.RWMutex
	directories  []string
	running      bool
	processed    int
	failed       int
	lastActivity time.Time
}

// New creates a watcher that hands settled files to r.
func New(opts Options, r pipeline.Relocator) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.NewFileError("invalid watch directory", opts.Root, errors.InvalidInput, err)
	}
	matcher, err := discover.NewMatcher(opts.Extensions)
	if err != nil {
		return nil, errors.NewFileError("invalid extension set", root, errors.InvalidInput, err)
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	if opts.Workers < 1 {
		opts.Workers = config.DefaultWorkers
	}

	limit := 1
	if opts.Recursive && opts.MaxDepth > 1 {
		limit = opts.MaxDepth
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if abs, err := filepath.Abs(dir); err == nil && abs != root {
			excluded[abs] = true
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		opts:      opts,
		root:      root,
		limit:     limit,
		matcher:   matcher,
		excluded:  excluded,
		relocator: r,
		fsWatcher: fsWatcher,
		pending:   make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled. Relocations already started are
// allowed to finish before Run returns; files still settling are left alone.
func (w *Watcher) Run(ctx context.Context) error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mutex.Unlock()

	defer func() {
		if err := w.fsWatcher.Close(); err != nil {
			log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
		}
		w.mutex.Lock()
		w.running = false
		w.mutex.Unlock()
	}()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(w.opts.Workers)

	tick := w.opts.Settle / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	log.LogWithFields(
		log.F("source", w.root),
		log.F("pattern", w.matcher.String()),
		log.F("settle", w.opts.Settle.String()),
	).Info("Watcher started")

	for {
		select {
		case <-ctx.Done():
			w.mutex.RLock()
			left := len(w.pending)
			w.mutex.RUnlock()
			log.LogWithFields(log.F("pending", left)).Info("Watcher stopping")
			_ = g.Wait()
			log.Info("Watcher stopped")
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				_ = g.Wait()
				return nil
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case now := <-ticker.C:
			// Never block the loop on busy workers; what cannot start now
			// goes back to pending and is retried on a later tick.
			for path, last := range w.settled(now) {
				path := path
				if !g.TryGo(func() error {
					w.process(ctx, path)
					return nil
				}) {
					w.requeue(path, last)
				}
			}
		}
	}
}

// handleEvent records activity for matching files and starts watching new
// directories inside the depth limit.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Lstat(event.Name)
	if err != nil {
		// Gone again before we looked
		if !os.IsNotExist(err) {
			log.LogWithFields(log.F("file", event.Name), log.F("error", err)).Warn("Error stating file")
		}
		return
	}

	depth := w.depthOf(event.Name)
	if info.IsDir() {
		if event.Op.Has(fsnotify.Create) && depth < w.limit && !w.excluded[event.Name] {
			if err := w.addTree(event.Name); err != nil {
				log.LogWithError(err).Warn("Cannot watch new directory")
			}
		}
		return
	}
	if !info.Mode().IsRegular() || depth > w.limit || !w.matcher.Match(event.Name) {
		return
	}
	w.touch(event.Name, time.Now())
}

func (w *Watcher) touch(path string, at time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.pending[path] = at
	w.lastActivity = at
}

// settled removes and returns every pending path that has been quiet for
// at least the settle delay, with the time of its last event.
func (w *Watcher) settled(now time.Time) map[string]time.Time {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	ready := make(map[string]time.Time)
	for path, last := range w.pending {
		if now.Sub(last) >= w.opts.Settle {
			ready[path] = last
			delete(w.pending, path)
		}
	}
	return ready
}

// requeue puts back a settled path that could not be dispatched. A newer
// event recorded in the meantime wins.
func (w *Watcher) requeue(path string, last time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if _, ok := w.pending[path]; !ok {
		w.pending[path] = last
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if info, err := os.Lstat(path); err != nil || !info.Mode().IsRegular() {
		return
	}

	res, err := w.relocator.Relocate(ctx, path)
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	w.mutex.Lock()
	if err != nil {
		w.failed++
	} else if res.Moved {
		w.processed++
	}
	w.mutex.Unlock()

	if err != nil {
		log.LogWithError(err).With(log.F("source", path), log.F("target", res.Destination)).Error("Relocation failed")
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res, err)
	}
}

// addTree watches dir and, within the depth limit, its subdirectories. Files
// already present in newly added directories are queued, since they may have
// arrived together with the directory itself.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return errors.NewFileError("cannot watch directory", dir, errors.InvalidInput, err)
			}
			log.LogWithFields(log.F("path", path), log.F("error", err.Error())).Warn("Skipping unreadable entry")
			return nil
		}

		depth := w.depthOf(path)
		if !d.IsDir() {
			if path != dir && d.Type().IsRegular() && depth <= w.limit && dir != w.root && w.matcher.Match(path) {
				w.touch(path, time.Now())
			}
			return nil
		}
		if path != w.root && (w.excluded[path] || depth >= w.limit) {
			return filepath.SkipDir
		}
		if err := w.AddDirectory(path); err != nil {
			if path == dir {
				return err
			}
			log.LogWithError(err).Warn("Cannot watch directory")
			return filepath.SkipDir
		}
		return nil
	})
}

// AddDirectory adds a single directory to the fsnotify watch list
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.NewFileError("error accessing directory", dir, errors.FileAccessDenied, err)
	}
	if !info.IsDir() {
		return errors.NewFileError("not a directory", dir, errors.InvalidInput, nil)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return errors.NewFileError("failed to add directory to watcher", dir, errors.InvalidInput, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()

	log.LogWithFields(log.F("directory", dir)).Debug("Watching directory")
	return nil
}

// Status returns the current activity counters
func (w *Watcher) Status() Status {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	dirs := make([]string, len(w.directories))
	copy(dirs, w.directories)
	return Status{
		Running:        w.running,
		Directories:    dirs,
		Pending:        len(w.pending),
		FilesProcessed: w.processed,
		FilesFailed:    w.failed,
		LastActivity:   w.lastActivity,
	}
}

// depthOf returns how many path segments path sits below the root.
func (w *Watcher) depthOf(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
