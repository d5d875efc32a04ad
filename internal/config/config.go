// Package config loads testscan settings from defaults, a YAML config file,
// TESTSCAN_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/phobologic/testscan/internal/model"
)

const (
	configBaseName = ".testscan"
	// FileName is the config file looked up in the working directory.
	FileName = configBaseName + ".yaml"

	// EnvPrefix prefixes environment overrides, e.g. TESTSCAN_TARGET_MODULE.
	EnvPrefix = "TESTSCAN"

	KeyMode        = "mode"
	KeyNamespace   = "namespace"
	KeyTargetMod   = "target.module"
	KeyTargetClass = "target.class"
	KeySearchPath  = "search_path"
	KeyMaxDepth    = "max_depth"
	KeyMaxFileSize = "max_file_size"
	KeyWorkers     = "workers"
	KeyFormat      = "format"
	KeyCache       = "cache"
	KeyTestsOnly   = "tests_only"

	KeyFilterTags            = "filter.tags"
	KeyFilterIncludeUntagged = "filter.include_untagged"
	KeyFilterClass           = "filter.class"
	KeyFilterFile            = "filter.file"
	KeyFilterMaxFiles        = "filter.max_files"

	KeyLogLevel      = "log.level"
	KeyLogFile       = "log.file"
	KeyLogMaxSize    = "log.max_size"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAge     = "log.max_age"
	KeyLogCompress   = "log.compress"
)

// Discovery modes.
const (
	ModeDirective  = "directive"
	ModeStructural = "structural"
)

// Output formats.
const (
	FormatTOON = "toon"
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTOON, FormatText, FormatJSON, FormatYAML}

// Target names the base class that marks test classes. The zero Target
// selects the mode's default: avocado.Test for directive mode and
// unittest.TestCase for structural mode.
type Target struct {
	Module string `mapstructure:"module" yaml:"module"`
	Class  string `mapstructure:"class" yaml:"class"`
}

// Filter narrows the report after discovery.
type Filter struct {
	Tags            []string `mapstructure:"tags" yaml:"tags"`
	IncludeUntagged bool     `mapstructure:"include_untagged" yaml:"include_untagged"`
	Class           string   `mapstructure:"class" yaml:"class"`
	File            string   `mapstructure:"file" yaml:"file"`
	MaxFiles        int      `mapstructure:"max_files" yaml:"max_files"`
}

// Log configures diagnostics. An empty File logs to stderr; otherwise the
// file is rotated by size.
type Log struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Config is the complete set of testscan settings.
type Config struct {
	Mode        string   `mapstructure:"mode" yaml:"mode"`
	Namespace   string   `mapstructure:"namespace" yaml:"namespace"`
	Target      Target   `mapstructure:"target" yaml:"target"`
	SearchPath  []string `mapstructure:"search_path" yaml:"search_path"`
	MaxDepth    int      `mapstructure:"max_depth" yaml:"max_depth"`
	MaxFileSize int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	Workers     int      `mapstructure:"workers" yaml:"workers"`
	Format      string   `mapstructure:"format" yaml:"format"`
	Cache       string   `mapstructure:"cache" yaml:"cache"`
	TestsOnly   bool     `mapstructure:"tests_only" yaml:"tests_only"`
	Filter      Filter   `mapstructure:"filter" yaml:"filter"`
	Log         Log      `mapstructure:"log" yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Mode:        ModeDirective,
		Namespace:   "avocado",
		SearchPath:  []string{},
		MaxDepth:    64,
		MaxFileSize: 1_000_000,
		Workers:     0,
		Format:      FormatTOON,
		TestsOnly:   false,
		Filter:      Filter{Tags: []string{}},
		Log: Log{
			Level:      "warn",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// New returns a viper instance seeded with defaults and environment
// bindings. Every key has a default so AutomaticEnv covers all of them.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyMode, d.Mode)
	v.SetDefault(KeyNamespace, d.Namespace)
	v.SetDefault(KeyTargetMod, d.Target.Module)
	v.SetDefault(KeyTargetClass, d.Target.Class)
	v.SetDefault(KeySearchPath, d.SearchPath)
	v.SetDefault(KeyMaxDepth, d.MaxDepth)
	v.SetDefault(KeyMaxFileSize, d.MaxFileSize)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyCache, d.Cache)
	v.SetDefault(KeyTestsOnly, d.TestsOnly)

	v.SetDefault(KeyFilterTags, d.Filter.Tags)
	v.SetDefault(KeyFilterIncludeUntagged, d.Filter.IncludeUntagged)
	v.SetDefault(KeyFilterClass, d.Filter.Class)
	v.SetDefault(KeyFilterFile, d.Filter.File)
	v.SetDefault(KeyFilterMaxFiles, d.Filter.MaxFiles)

	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFile, d.Log.File)
	v.SetDefault(KeyLogMaxSize, d.Log.MaxSize)
	v.SetDefault(KeyLogMaxBackups, d.Log.MaxBackups)
	v.SetDefault(KeyLogMaxAge, d.Log.MaxAge)
	v.SetDefault(KeyLogCompress, d.Log.Compress)
	return v
}

// ReadFile merges a config file into v. With an empty path, FileName in the
// working directory is used if it exists; an explicit path must exist.
func ReadFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	v.SetConfigFile(filepath.Clean(path))
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDirective, ModeStructural:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeDirective, ModeStructural)
	}
	if !isFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %s", c.Format, strings.Join(Formats, ", "))
	}
	if (c.Target.Module == "") != (c.Target.Class == "") {
		return fmt.Errorf("target module and class must be set together")
	}
	if c.Mode == ModeDirective && c.Namespace == "" {
		return fmt.Errorf("namespace is required in %s mode", ModeDirective)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.Filter.MaxFiles < 0 {
		return fmt.Errorf("filter.max_files must not be negative, got %d", c.Filter.MaxFiles)
	}
	return nil
}

// ModelTarget returns the target as a model value, falling back to the
// mode's default when none is set.
func (c Config) ModelTarget() model.Target {
	if c.Target.Module == "" && c.Target.Class == "" {
		if c.Structural() {
			return model.Target{Module: "unittest", Class: "TestCase"}
		}
		return model.Target{Module: "avocado", Class: "Test"}
	}
	return model.Target{Module: c.Target.Module, Class: c.Target.Class}
}

// Structural reports whether ancestors are matched on class structure alone.
// Directive shortcuts on the scanned classes themselves still apply.
func (c Config) Structural() bool {
	return c.Mode == ModeStructural
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}
