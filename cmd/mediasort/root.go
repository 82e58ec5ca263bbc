package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediasort/internal/config"
	"mediasort/internal/discover"
	"mediasort/internal/errors"
	"mediasort/internal/log"
	"mediasort/internal/pipeline"
	"mediasort/internal/relocate"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues holds raw flag input. Only flags the user actually set are
// applied on top of the config file.
type flagValues struct {
	configFile string
	sourceDir  string
	destDir    string
	extensions string
	recursive  bool
	maxDepth   int
	workers    int
	collision  string
	dryRun     bool
	strict     bool
	debug      bool
	logJSON    bool
	logFile    string
	settle     time.Duration
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	flags := &flagValues{}

	rootCmd := &cobra.Command{
		Use:   "mediasort",
		Short: "Sort media files into dated folders",
		Long: `mediasort moves photos and other media files from a source directory
into a destination tree organized by creation date:

  <dest>/YYYY/MM - MonthName/YYYY-MM-DD/<name>

File extensions are lower-cased on the way. Sidecar files such as
photo.jpg.xmp follow the file they belong to.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
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

			summary, err := runOnce(ctx, cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary, runID, cfg.Settings.DryRun))

			if cfg.Settings.Strict && !summary.OK() {
				return errFilesFailed
			}
			return nil
		},
	}
	rootCmd.SetVersionTemplate("mediasort {{.Version}}\n")

	// Flag errors are usage errors, same as a bad config
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.NewConfigError("invalid flags", "flags", errors.InvalidInput, err)
	})

	bindFlags(rootCmd.PersistentFlags(), flags)

	rootCmd.AddCommand(NewWatchCmd(flags))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// bindFlags registers the flags shared by every sorting command.
func bindFlags(pf *pflag.FlagSet, flags *flagValues) {
	pf.StringVarP(&flags.configFile, "config", "c", "", "yaml config file")
	pf.StringVarP(&flags.sourceDir, "source-dir", "s", "", "directory to read media files from (required)")
	pf.StringVarP(&flags.destDir, "dest-dir", "d", "", "root of the dated destination tree (required)")
	pf.StringVarP(&flags.extensions, "file-extensions", "e", config.DefaultExtensions, "comma-separated extensions to relocate")
	pf.BoolVarP(&flags.recursive, "recursive", "r", false, "descend into subdirectories of the source")
	pf.IntVar(&flags.maxDepth, "max-depth", config.DefaultMaxDepth, "how deep a recursive walk may go")
	pf.IntVarP(&flags.workers, "workers", "w", config.DefaultWorkers, "files relocated at the same time")
	pf.StringVar(&flags.collision, "collision", config.CollisionFail, "when the target name is taken: fail, skip, rename or overwrite")
	pf.BoolVarP(&flags.dryRun, "dry-run", "n", false, "show what would be moved without touching anything")
	pf.BoolVar(&flags.strict, "strict", false, "exit with a non-zero status when any file fails")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&flags.logJSON, "log-json", false, "write logs as JSON")
	pf.StringVar(&flags.logFile, "log-file", "", "also append logs to this file")
}

// loadConfig builds the run configuration from defaults, the optional config
// file and the flags that were set, then validates it.
func loadConfig(fs *pflag.FlagSet, flags *flagValues) (*config.Config, error) {
	cfg := config.New()
	if flags.configFile != "" {
		var err error
		cfg, err = config.LoadConfigFile(flags.configFile)
		if err != nil {
			return nil, err
		}
	}

	if fs.Changed("source-dir") {
		cfg.Source.Dir = flags.sourceDir
	}
	if fs.Changed("dest-dir") {
		cfg.Destination.Dir = flags.destDir
	}
	if fs.Changed("file-extensions") {
		cfg.Source.Extensions = config.ParseExtensions(flags.extensions)
	}
	if fs.Changed("recursive") {
		cfg.Source.Recursive = flags.recursive
	}
	if fs.Changed("max-depth") {
		cfg.Source.MaxDepth = flags.maxDepth
	}
	if fs.Changed("workers") {
		cfg.Settings.Workers = flags.workers
	}
	if fs.Changed("collision") {
		cfg.Destination.Collision = flags.collision
	}
	if fs.Changed("dry-run") {
		cfg.Settings.DryRun = flags.dryRun
	}
	if fs.Changed("strict") {
		cfg.Settings.Strict = flags.strict
	}
	if fs.Changed("debug") {
		cfg.Logging.Debug = flags.debug
	}
	if fs.Changed("log-json") {
		cfg.Logging.JSON = flags.logJSON
	}
	if fs.Changed("log-file") {
		cfg.Logging.File = flags.logFile
	}
	if fs.Lookup("settle") != nil && fs.Changed("settle") {
		cfg.Watch.Settle = flags.settle
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures the process-wide logger and returns the run id
// every line of this run carries.
func setupLogging(cfg *config.Config, stderr io.Writer) (string, error) {
	level := "info"
	if cfg.Logging.Debug {
		level = "debug"
	}
	runID := uuid.New().String()
	opts := []log.Option{
		log.WithOutput(stderr),
		log.WithLevel(level),
		log.WithFields(log.F("run_id", runID)),
	}
	if cfg.Logging.JSON {
		opts = append(opts, log.WithJSON())
	}
	if cfg.Logging.File != "" {
		opts = append(opts, log.WithFile(cfg.Logging.File))
	}
	if err := log.Configure(opts...); err != nil {
		return "", errors.NewConfigError("cannot open log file", "log_file", errors.InvalidConfig, err)
	}
	log.SetDebug(cfg.Logging.Debug)

	log.LogWithFields(
		log.F("source", cfg.Source.Dir),
		log.F("destination", cfg.Destination.Dir),
		log.F("recursive", cfg.Source.Recursive),
		log.F("workers", cfg.Settings.Workers),
		log.F("dry_run", cfg.Settings.DryRun),
	).Info("Starting run")
	return runID, nil
}

// runOnce discovers every matching file under the source and relocates it.
func runOnce(ctx context.Context, cfg *config.Config, out io.Writer) (pipeline.Summary, error) {
	tasks, err := discover.Discover(ctx, discover.Options{
		Root:       cfg.Source.Dir,
		Extensions: cfg.Source.Extensions,
		Recursive:  cfg.Source.Recursive,
		MaxDepth:   cfg.Source.MaxDepth,
		Exclude:    []string{cfg.Destination.Dir},
	})
	if err != nil {
		return pipeline.Summary{}, errors.Wrap(err, "discovery failed")
	}

	rel := relocate.New(relocate.OptionsFromConfig(cfg), timeSource)
	report := newReporter(out, len(tasks), cfg.Settings.DryRun)
	defer report.finish()

	return pipeline.Run(ctx, tasks, rel, pipeline.Options{
		Workers:  cfg.Settings.Workers,
		OnResult: report.result,
	}), nil
}
