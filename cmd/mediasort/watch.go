package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mediasort/internal/relocate"
	"mediasort/internal/watch"

	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command
func NewWatchCmd(flags *flagValues) *cobra.Command {
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep relocating media files as they arrive",
		Long: `Watch the source directory and relocate new media files once they
have stopped changing for the settle period. Files already present are
relocated first unless --skip-existing is given. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			runID, err := setupLogging(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if !skipExisting {
				summary, err := runOnce(ctx, cfg, out)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderSummary(summary, runID, cfg.Settings.DryRun))
			}

			var mu sync.Mutex
			w, err := watch.New(watch.Options{
				Root:       cfg.Source.Dir,
				Extensions: cfg.Source.Extensions,
				Recursive:  cfg.Source.Recursive,
				MaxDepth:   cfg.Source.MaxDepth,
				Exclude:    []string{cfg.Destination.Dir},
				Settle:     cfg.Watch.Settle,
				Workers:    cfg.Settings.Workers,
				OnResult: func(res relocate.Result, err error) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintln(out, watchLine(res, err))
				},
			}, relocate.New(relocate.OptionsFromConfig(cfg), timeSource))
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", pathStyle.Render(cfg.Source.Dir))
			if err := w.Run(ctx); err != nil {
				return err
			}

			status := w.Status()
			fmt.Fprintf(out, "Stopped. %d moved, %d failed.\n", status.FilesProcessed, status.FilesFailed)
			if cfg.Settings.Strict && status.FilesFailed > 0 {
				return errFilesFailed
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&flags.settle, "settle", 2*time.Second, "quiet period after the last write before a file is moved")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "only relocate files that arrive after the watch starts")

	return cmd
}
