package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mediasort/internal/errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultExtensions is the extension set used when none is configured.
const DefaultExtensions = "avif,hif,jpeg,jpg,png,tif,tiff,dng,arw,raf"

// Collision strategies applied when the destination name is already taken.
const (
	CollisionFail      = "fail"
	CollisionSkip      = "skip"
	CollisionRename    = "rename"
	CollisionOverwrite = "overwrite"
)

const (
	// DefaultWorkers bounds how many files are relocated at the same time.
	DefaultWorkers = 6
	// DefaultMaxDepth bounds recursive discovery.
	DefaultMaxDepth = 5
)

var extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// Config represents the run parameters. It is built once at startup from
// defaults, an optional yaml file and command line flags, and is not mutated
// after Validate succeeds.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Settings    SettingsConfig    `yaml:"settings"`
	Logging     LoggingConfig     `yaml:"logging"`
	Watch       WatchConfig       `yaml:"watch"`
}

// SourceConfig describes where media files are discovered.
type SourceConfig struct {
	Dir        string   `yaml:"dir"`
	Recursive  bool     `yaml:"recursive"`
	MaxDepth   int      `yaml:"max_depth"`
	Extensions []string `yaml:"extensions"`
}

// DestinationConfig describes where media files are moved to.
type DestinationConfig struct {
	Dir       string `yaml:"dir"`
	Collision string `yaml:"collision"` // fail, skip, rename or overwrite
}

// SettingsConfig holds processing knobs.
type SettingsConfig struct {
	Workers  int      `yaml:"workers"`
	DryRun   bool     `yaml:"dry_run"`
	Strict   bool     `yaml:"strict"`   // non-zero exit when any file fails
	Sidecars []string `yaml:"sidecars"` // extensions appended to the media file name
}

// LoggingConfig controls the process-wide log sink.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Settle time.Duration `yaml:"settle"` // quiet period before a new file is relocated
}

// New creates a configuration with default values.
func New() *Config {
	return defaultConfig()
}

// defaultConfig returns the default configuration with safe defaults.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Source.MaxDepth = DefaultMaxDepth
	cfg.Source.Extensions = ParseExtensions(DefaultExtensions)

	// Refuse to clobber by default
	cfg.Destination.Collision = CollisionFail

	cfg.Settings.Workers = DefaultWorkers
	cfg.Settings.Sidecars = []string{"dop", "xmp"}

	cfg.Watch.Settle = 2 * time.Second

	return cfg
}

// LoadConfigFile loads configuration from a yaml file on top of the defaults.
// Keys missing from the file keep their default value.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError("config file not found", path, errors.ConfigNotFound, err)
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.InvalidConfig, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}

	cfg.Source.Extensions = normalizeExtensions(cfg.Source.Extensions)
	cfg.Settings.Sidecars = normalizeExtensions(cfg.Settings.Sidecars)
	return cfg, nil
}

// SaveConfig writes the configuration to path, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseExtensions splits a comma-separated list into a normalized extension
// set: lower case, no leading dot, no blanks, no duplicates.
func ParseExtensions(list string) []string {
	return normalizeExtensions(strings.Split(list, ","))
}

func normalizeExtensions(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

// Validate checks the configuration and resolves both directories to
// absolute paths. Every failure is a ConfigError.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}

	if err := c.Source.Validate(); err != nil {
		return errors.NewConfigError("invalid source configuration", "source", errors.InvalidConfig, err)
	}
	if err := c.Destination.Validate(); err != nil {
		return errors.NewConfigError("invalid destination configuration", "destination", errors.InvalidConfig, err)
	}
	if err := c.Settings.Validate(); err != nil {
		return errors.NewConfigError("invalid settings", "settings", errors.InvalidConfig, err)
	}

	src, err := requireDir(c.Source.Dir, "source_dir")
	if err != nil {
		return err
	}
	dest, err := requireDir(c.Destination.Dir, "dest_dir")
	if err != nil {
		return err
	}
	c.Source.Dir = src
	c.Destination.Dir = dest
	return nil
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1)),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Match(extensionPattern))),
	)
}

// Validate validates the destination configuration.
func (c *DestinationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Collision, validation.Required,
			validation.In(CollisionFail, CollisionSkip, CollisionRename, CollisionOverwrite)),
	)
}

// Validate validates the processing settings.
func (c *SettingsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
		validation.Field(&c.Sidecars, validation.Each(validation.Match(extensionPattern))),
	)
}

// requireDir resolves path and checks that it exists and is a directory.
func requireDir(path, param string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewConfigError("invalid path", param, errors.InvalidConfig, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewConfigError("directory does not exist", param, errors.InvalidConfig,
				errors.NewFileError("not found", abs, errors.FileNotFound, err))
		}
		return "", errors.NewConfigError("cannot access directory", param, errors.InvalidConfig,
			errors.NewFileError("stat failed", abs, errors.FileAccessDenied, err))
	}
	if !info.IsDir() {
		return "", errors.NewConfigError("not a directory", param, errors.InvalidConfig,
			errors.NewFileError("not a directory", abs, errors.InvalidInput, nil))
	}
	return abs, nil
}
