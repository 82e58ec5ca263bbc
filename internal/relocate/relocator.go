// Package relocate moves a single media file, and any sidecar files that
// belong to it, into the dated destination tree.
package relocate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediasort/internal/config"
	"mediasort/internal/errors"
	"mediasort/internal/filetime"
	"mediasort/internal/layout"
	"mediasort/internal/log"
)

// Options controls where and how files are moved.
type Options struct {
	DestRoot  string
	Collision string   // one of the config.Collision* strategies
	Sidecars  []string // sidecar extensions without the leading dot
	DryRun    bool
}

// OptionsFromConfig builds relocation options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DestRoot:  cfg.Destination.Dir,
		Collision: cfg.Destination.Collision,
		Sidecars:  cfg.Settings.Sidecars,
		DryRun:    cfg.Settings.DryRun,
	}
}

// SidecarMove records one sidecar that followed its media file.
type SidecarMove struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Result holds the outcome of relocating one file.
type Result struct {
	Source      string        `json:"source"`
	Destination string        `json:"destination,omitempty"`
	Sidecars    []SidecarMove `json:"sidecars,omitempty"`
	Moved       bool          `json:"moved"`
	Skipped     bool          `json:"skipped"`
	DryRun      bool          `json:"dry_run"`
}

// Relocator moves files into the destination tree. It is safe for
// concurrent use; each call works on its own source file.
type Relocator struct {
	opts  Options
	times filetime.Source
	locks *dirLocks
}

// New creates a Relocator that dates files with times.
func New(opts Options, times filetime.Source) *Relocator {
	if opts.Collision == "" {
		opts.Collision = config.CollisionFail
	}
	return &Relocator{
		opts:  opts,
		times: times,
		locks: newDirLocks(),
	}
}

// Relocate moves path to root/YYYY/MM - Month/YYYY-MM-DD/<name with lower-case
// extension> and then moves any sidecar files found next to it. Failures are
// returned as typed file errors: metadata, directory create or move. A
// sidecar failure is returned after the primary file has already moved, so
// the Result is meaningful even when err is non-nil.
func (r *Relocator) Relocate(ctx context.Context, path string) (Result, error) {
	result := Result{Source: path, DryRun: r.opts.DryRun}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	l := log.LogWithFields(log.F("source", path))
	l.Debug("Processing file")

	created, err := r.times.Created(path)
	if err != nil {
		return result, errors.NewFileError("cannot read creation time", path, errors.MetadataReadFailed, err)
	}

	name := filepath.Base(path)
	newName := layout.TargetName(name)
	dir := layout.DayDir(r.opts.DestRoot, created)
	dest := filepath.Join(dir, newName)
	result.Destination = dest
	l = l.With(log.F("target", dest))
	l.With(log.F("created", created.Format("2006-01-02T15:04:05"))).Debug("Computed target")

	// Sidecars are looked up before the move so only pre-existing ones follow
	sidecars := r.findSidecars(filepath.Dir(path), name, newName)

	if r.opts.DryRun {
		for _, sc := range sidecars {
			result.Sidecars = append(result.Sidecars, SidecarMove{Source: sc.path, Destination: filepath.Join(dir, filepath.Base(sc.path))})
		}
		l.Info("Would move file")
		return result, nil
	}

	if err := EnsureDir(dir); err != nil {
		return result, err
	}

	final, err := r.move(path, dest, r.opts.Collision)
	if err != nil {
		return result, err
	}
	if final == "" {
		result.Skipped = true
		l.Info("Skipped file")
		return result, nil
	}
	result.Destination = final
	result.Moved = true
	if final != dest {
		l = l.With(log.F("target", final))
	}
	l.Info("Moved file")

	// A renamed primary takes its sidecars along to the new name; a sidecar
	// is never renamed on its own or it would no longer pair with its file.
	renamed := filepath.Base(final) != newName
	scPolicy := r.opts.Collision
	if scPolicy == config.CollisionRename {
		scPolicy = config.CollisionFail
	}

	var sidecarErrs []error
	for _, sc := range sidecars {
		scName := filepath.Base(sc.path)
		if renamed {
			scName = filepath.Base(final) + sc.suffix
		}
		scDest := filepath.Join(dir, scName)
		scFinal, err := r.move(sc.path, scDest, scPolicy)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Removed between lookup and move
				continue
			}
			sidecarErrs = append(sidecarErrs, err)
			continue
		}
		if scFinal == "" {
			continue
		}
		result.Sidecars = append(result.Sidecars, SidecarMove{Source: sc.path, Destination: scFinal})
		log.LogWithFields(log.F("source", sc.path), log.F("target", scFinal)).Info("Moved sidecar")
	}

	return result, errors.Join(sidecarErrs...)
}

// sidecar is a file that belongs to a media file by name.
type sidecar struct {
	path   string
	suffix string // what follows the media name, e.g. ".xmp"
}

// findSidecars returns the sidecar files present next to a media file. The
// expected name is the post-normalization media name plus the sidecar
// extension; the original spelling is tried when that is absent.
func (r *Relocator) findSidecars(srcDir, name, newName string) []sidecar {
	var found []sidecar
	for _, ext := range r.opts.Sidecars {
		suffix := "." + strings.TrimPrefix(ext, ".")
		candidates := []string{filepath.Join(srcDir, newName+suffix)}
		if newName != name {
			candidates = append(candidates, filepath.Join(srcDir, name+suffix))
		}
		for _, c := range candidates {
			if info, err := os.Lstat(c); err == nil && info.Mode().IsRegular() {
				found = append(found, sidecar{path: c, suffix: suffix})
				break
			}
		}
	}
	return found
}

// move renames src to dest applying the collision policy. It returns the
// path the file ended up at, or "" when the file was left in place.
func (r *Relocator) move(src, dest, policy string) (string, error) {
	if filepath.Clean(src) == filepath.Clean(dest) {
		return "", nil
	}

	unlock := r.locks.lock(filepath.Dir(dest))
	defer unlock()

	final, err := r.resolveCollision(src, dest, policy)
	if err != nil || final == "" {
		return "", err
	}

	if err := moveFile(src, final); err != nil {
		return "", errors.NewFileError(fmt.Sprintf("cannot move file to %s", final), src, errors.MoveFailed, err)
	}
	return final, nil
}

// resolveCollision returns the destination to use, "" to skip, or an error.
func (r *Relocator) resolveCollision(src, dest, policy string) (string, error) {
	_, err := os.Lstat(dest)
	if os.IsNotExist(err) {
		return dest, nil
	}
	if err != nil {
		return "", errors.NewFileError("cannot check destination", dest, errors.MoveFailed, err)
	}

	l := log.LogWithFields(log.F("source", src), log.F("target", dest), log.F("strategy", policy))
	switch policy {
	case config.CollisionSkip:
		l.Warn("Destination exists, skipping")
		return "", nil
	case config.CollisionOverwrite:
		l.Warn("Destination exists, overwriting")
		return dest, nil
	case config.CollisionRename:
		unique, err := findUniqueDestName(dest)
		if err != nil {
			return "", errors.NewFileError("cannot find a free name", dest, errors.DestinationExists, err)
		}
		l.With(log.F("renamed", unique)).Info("Destination exists, renaming")
		return unique, nil
	default:
		return "", errors.NewFileError("destination already exists", dest, errors.DestinationExists, nil)
	}
}

const maxRenameAttempts = 1000

// findUniqueDestName finds a free name by adding a counter to the base name
func findUniqueDestName(originalPath string) (string, error) {
	ext := filepath.Ext(originalPath)
	base := strings.TrimSuffix(originalPath, ext)

	for counter := 1; counter <= maxRenameAttempts; counter++ {
		newName := fmt.Sprintf("%s_(%d)%s", base, counter, ext)
		if _, err := os.Lstat(newName); os.IsNotExist(err) {
			return newName, nil
		}
	}
	return "", errors.Newf("no free name after %d attempts", maxRenameAttempts)
}
