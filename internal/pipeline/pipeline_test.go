package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediasort/internal/discover"
	"mediasort/internal/errors"
	"mediasort/internal/filetime"
	"mediasort/internal/relocate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelocator records concurrency and fails the paths it is told to
type fakeRelocator struct {
	delay    time.Duration
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (f *fakeRelocator) Relocate(ctx context.Context, path string) (relocate.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, path)
	f.mu.Unlock()

	time.Sleep(f.delay)
	res := relocate.Result{Source: path}
	if err, ok := f.fail[path]; ok {
		return res, err
	}
	res.Destination = "/dest/" + filepath.Base(path)
	res.Moved = true
	return res, nil
}

func makeTasks(n int) []discover.FileTask {
	tasks := make([]discover.FileTask, n)
	for i := range tasks {
		tasks[i] = discover.FileTask{Path: fmt.Sprintf("/src/file%02d.jpg", i)}
	}
	return tasks
}

func TestRunAllSucceed(t *testing.T) {
	r := &fakeRelocator{}
	var results atomic.Int32

	summary := Run(context.Background(), makeTasks(20), r, Options{
		Workers:  4,
		OnResult: func(relocate.Result, error) { results.Add(1) },
	})

	assert.Equal(t, 20, summary.Total)
	assert.Equal(t, 20, summary.Moved)
	assert.Zero(t, summary.Failed)
	assert.True(t, summary.OK())
	assert.Equal(t, int32(20), results.Load())
	assert.Len(t, r.seen, 20)
}

func TestRunIsolatesFailures(t *testing.T) {
	tasks := makeTasks(10)
	bad := tasks[3].Path
	r := &fakeRelocator{fail: map[string]error{
		bad: errors.NewFileError("cannot read creation time", bad, errors.MetadataReadFailed, os.ErrNotExist),
	}}

	summary := Run(context.Background(), tasks, r, Options{Workers: 3})

	assert.Equal(t, 9, summary.Moved)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.OK())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, bad, summary.Failures[0].Source)
	assert.Equal(t, "metadata", summary.Failures[0].Kind)
	assert.True(t, errors.IsMetadataError(summary.Failures[0].Err))
}

func TestRunBoundsConcurrency(t *testing.T) {
	r := &fakeRelocator{delay: 20 * time.Millisecond}

	Run(context.Background(), makeTasks(30), r, Options{Workers: 6})

	assert.LessOrEqual(t, r.peak.Load(), int32(6))
	assert.Greater(t, r.peak.Load(), int32(1), "tasks should overlap")
}

func TestRunDefaultWorkers(t *testing.T) {
	r := &fakeRelocator{delay: 10 * time.Millisecond}

	summary := Run(context.Background(), makeTasks(20), r, Options{})

	assert.Equal(t, 20, summary.Moved)
	assert.LessOrEqual(t, r.peak.Load(), int32(6))
}

func TestRunEmpty(t *testing.T) {
	summary := Run(context.Background(), nil, &fakeRelocator{}, Options{Workers: 2})
	assert.Zero(t, summary.Total)
	assert.True(t, summary.OK())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRelocator{}

	summary := Run(ctx, makeTasks(5), r, Options{Workers: 2})

	assert.Empty(t, r.seen)
	assert.Equal(t, 5, summary.Cancelled)
	assert.False(t, summary.OK())
}

func TestRunCancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeRelocator{delay: 20 * time.Millisecond}

	var once sync.Once
	summary := Run(ctx, makeTasks(50), r, Options{
		Workers:  2,
		OnResult: func(relocate.Result, error) { once.Do(cancel) },
	})

	assert.Less(t, len(r.seen), 50)
	assert.Equal(t, 50, summary.Moved+summary.Cancelled)
	assert.Positive(t, summary.Cancelled)
}

func TestRunClassifiesResults(t *testing.T) {
	r := relocatorFunc(func(_ context.Context, path string) (relocate.Result, error) {
		res := relocate.Result{Source: path}
		switch filepath.Base(path) {
		case "file00.jpg":
			res.Skipped = true
		case "file01.jpg":
			res.DryRun = true
		case "file02.jpg":
			res.Moved = true
			res.Sidecars = []relocate.SidecarMove{{Source: path + ".xmp"}}
			return res, errors.NewFileError("cannot move file", path+".dop", errors.MoveFailed, os.ErrPermission)
		default:
			res.Moved = true
		}
		return res, nil
	})

	summary := Run(context.Background(), makeTasks(4), r, Options{Workers: 2})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Planned)
	assert.Equal(t, 2, summary.Moved)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Sidecars)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "move", summary.Failures[0].Kind)
}

type relocatorFunc func(context.Context, string) (relocate.Result, error)

func (f relocatorFunc) Relocate(ctx context.Context, path string) (relocate.Result, error) {
	return f(ctx, path)
}

// End to end with the real relocator: one file without a creation time
// among many must not affect the rest.
func TestRunWithRelocator(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	created := time.Date(2023, time.March, 5, 9, 30, 0, 0, time.Local)

	var tasks []discover.FileTask
	for i := 0; i < 12; i++ {
		p := filepath.Join(src, fmt.Sprintf("img%02d.JPG", i))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		tasks = append(tasks, discover.FileTask{Path: p})
	}
	broken := tasks[7].Path

	times := filetime.SourceFunc(func(path string) (time.Time, error) {
		if path == broken {
			return time.Time{}, filetime.ErrCreationTimeUnavailable
		}
		return created, nil
	})
	rel := relocate.New(relocate.Options{DestRoot: dest}, times)

	summary := Run(context.Background(), tasks, rel, Options{Workers: 6})

	assert.Equal(t, 11, summary.Moved)
	assert.Equal(t, 1, summary.Failed)
	assert.FileExists(t, broken)

	entries, err := os.ReadDir(filepath.Join(dest, "2023", "03 - March", "2023-03-05"))
	require.NoError(t, err)
	assert.Len(t, entries, 11)
	for _, e := range entries {
		assert.Equal(t, ".jpg", filepath.Ext(e.Name()))
	}
}
