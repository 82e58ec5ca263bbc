// Package pipeline fans discovered files out to a bounded set of workers and
// collects the outcome of every task.
package pipeline

import (
	"context"
	"sync"
	"time"

	"mediasort/internal/config"
	"mediasort/internal/discover"
	"mediasort/internal/errors"
	"mediasort/internal/log"
	"mediasort/internal/relocate"

	"golang.org/x/sync/errgroup"
)

// Relocator moves a single file. *relocate.Relocator satisfies it.
type Relocator interface {
	Relocate(ctx context.Context, path string) (relocate.Result, error)
}

// Options controls a run.
type Options struct {
	// Workers bounds how many tasks run at the same time.
	Workers int
	// OnResult, when set, is called once per finished task. It may be called
	// from several goroutines at once.
	OnResult func(relocate.Result, error)
}

// Failure records a task that did not complete.
type Failure struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Kind        string `json:"kind"`
	Err         error  `json:"-"`
}

// Summary describes a finished run.
type Summary struct {
	Total     int           `json:"total"`
	Moved     int           `json:"moved"`
	Skipped   int           `json:"skipped"`
	Planned   int           `json:"planned"` // dry-run only
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Sidecars  int           `json:"sidecars"`
	Duration  time.Duration `json:"duration"`
	Failures  []Failure     `json:"failures,omitempty"`
}

// OK reports whether every task succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == 0
}

// Run relocates every task with at most opts.Workers in flight. A failing
// task never stops the others; it is logged once and counted. Once ctx is
// cancelled no new task is started, tasks already running finish, and the
// remainder is counted as cancelled. Run returns when every started task
// has finished.
func Run(ctx context.Context, tasks []discover.FileTask, r Relocator, opts Options) Summary {
	workers := opts.Workers
	if workers < 1 {
		workers = config.DefaultWorkers
	}

	start := time.Now()
	summary := Summary{Total: len(tasks)}
	var mu sync.Mutex

	record := func(res relocate.Result, err error) {
		mu.Lock()
		defer mu.Unlock()

		summary.Sidecars += len(res.Sidecars)
		switch {
		case err != nil && res.Moved:
			// Primary moved, a sidecar did not
			summary.Moved++
			summary.Failed++
			summary.Failures = append(summary.Failures, failureOf(res, err))
		case err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, failureOf(res, err))
		case res.DryRun:
			summary.Planned++
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Moved++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	dispatched := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		task := task
		dispatched++
		g.Go(func() error {
			res, err := r.Relocate(ctx, task.Path)
			if err != nil && errors.Is(err, context.Canceled) && !res.Moved {
				mu.Lock()
				summary.Cancelled++
				mu.Unlock()
				return nil
			}
			if err != nil {
				logFailure(res, err)
			}
			record(res, err)
			if opts.OnResult != nil {
				opts.OnResult(res, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Cancelled += len(tasks) - dispatched
	summary.Duration = time.Since(start)

	l := log.LogWithFields(
		log.F("total", summary.Total),
		log.F("moved", summary.Moved),
		log.F("skipped", summary.Skipped),
		log.F("failed", summary.Failed),
		log.F("duration", summary.Duration.Round(time.Millisecond).String()),
	)
	if summary.Cancelled > 0 {
		l.With(log.F("cancelled", summary.Cancelled)).Warn("Run interrupted")
	} else {
		l.Info("Run finished")
	}
	return summary
}

func failureOf(res relocate.Result, err error) Failure {
	return Failure{
		Source:      res.Source,
		Destination: res.Destination,
		Kind:        errors.KindOf(err).String(),
		Err:         err,
	}
}

func logFailure(res relocate.Result, err error) {
	fields := []log.Field{log.F("source", res.Source)}
	if res.Destination != "" {
		fields = append(fields, log.F("target", res.Destination))
	}
	log.LogWithError(err).With(fields...).Error("Relocation failed")
}
