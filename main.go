// testscan statically discovers Python test classes and methods without
// importing them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phobologic/testscan/internal/config"
	"github.com/phobologic/testscan/internal/discover"
	"github.com/phobologic/testscan/internal/filter"
	"github.com/phobologic/testscan/internal/finder"
	"github.com/phobologic/testscan/internal/graph"
	"github.com/phobologic/testscan/internal/logging"
	"github.com/phobologic/testscan/internal/model"
	"github.com/phobologic/testscan/internal/report"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

const rootLongDescription = `testscan finds Python test classes and their test methods by reading
source files, never importing them. A class is a test when it inherits,
directly or through other scanned or imported classes, from the target base
class (avocado.Test by default), or when a docstring directive such as
":avocado: enable" or ":avocado: recursive" says so.

Arguments are files or directories; directories are walked for .py files.
Settings come from flags, TESTSCAN_* environment variables and
.testscan.yaml, in that order of precedence.`

// scanParams holds what the scan command needs beyond the loaded Config.
type scanParams struct {
	args    []string
	cfg     config.Config
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := config.New()
	var (
		configFile string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "testscan [paths...]",
		Short:         "Static discovery of Python tests",
		Long:          rootLongDescription,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, configFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), scanParams{
				args:    args,
				cfg:     cfg,
				verbose: verbose,
				stdout:  stdout,
				stderr:  stderr,
			})
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("testscan {{.Version}}\n")

	d := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ./"+config.FileName+" if present)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug details")

	flags.String("mode", d.Mode, "matching mode: directive or structural")
	flags.String("namespace", d.Namespace, "docstring directive namespace")
	flags.String("target-module", d.Target.Module, "module of the base class that marks tests (default avocado, unittest in structural mode)")
	flags.String("target-class", d.Target.Class, "name of the base class that marks tests (default Test, TestCase in structural mode)")
	flags.StringSliceP("search-path", "I", nil, "extra directories searched for imported modules (can be repeated)")
	flags.Int("max-depth", d.MaxDepth, "maximum inheritance depth followed")
	flags.Int64("max-file-size", d.MaxFileSize, "skip files larger than this many bytes")
	flags.IntP("workers", "j", d.Workers, "files scanned in parallel (0 means one per CPU)")
	flags.StringP("format", "f", d.Format, "output format: toon, text, json or yaml")
	flags.String("cache", "", "cache file path; the report is reused while settings, sources and their directories are unchanged (new modules in existing subpackages are not detected)")
	flags.Bool("tests-only", d.TestsOnly, "only scan test_*.py, *_test.py and files under test/ or tests/")

	flags.StringArrayP("tags", "t", nil, `tag filter, e.g. "fast,-net" (can be repeated, any may match)`)
	flags.Bool("include-untagged", false, "keep untagged tests when filtering by tags")
	flags.String("class", "", "keep only classes whose name contains this text")
	flags.String("file", "", "keep only files whose path contains this text")
	flags.IntP("max-files", "n", 0, "keep only the first N files")

	flags.String("log-level", d.Log.Level, "log level: debug, info, warn or error")
	flags.String("log-file", "", "write logs to this rotated file instead of stderr")

	for flag, key := range map[string]string{
		"mode":             config.KeyMode,
		"namespace":        config.KeyNamespace,
		"target-module":    config.KeyTargetMod,
		"target-class":     config.KeyTargetClass,
		"search-path":      config.KeySearchPath,
		"max-depth":        config.KeyMaxDepth,
		"max-file-size":    config.KeyMaxFileSize,
		"workers":          config.KeyWorkers,
		"format":           config.KeyFormat,
		"cache":            config.KeyCache,
		"tests-only":       config.KeyTestsOnly,
		"tags":             config.KeyFilterTags,
		"include-untagged": config.KeyFilterIncludeUntagged,
		"class":            config.KeyFilterClass,
		"file":             config.KeyFilterFile,
		"max-files":        config.KeyFilterMaxFiles,
		"log-level":        config.KeyLogLevel,
		"log-file":         config.KeyLogFile,
	} {
		bindFlagToConfig(v, flags.Lookup(flag), key)
	}

	cmd.AddCommand(newInitCmd(stdout, stderr))
	cmd.AddCommand(newSchemaCmd(stdout))
	return cmd
}

// bindFlagToConfig wires a flag to a viper key so config and env values feed
// the flag.
func bindFlagToConfig(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(v.BindPFlag(key, flag))
}

func newSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for --format=json output",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(stdout, report.Schema)
			return err
		},
	}
}

// runScan is the testable body of the root command.
func runScan(ctx context.Context, p scanParams) error {
	logger, closer, err := logging.New(p.stderr, p.cfg.Log, p.verbose)
	if err != nil {
		return err
	}
	defer closer.Close()

	args := p.args
	if len(args) == 0 {
		args = []string{"."}
	}
	root, err := scanRoot(args)
	if err != nil {
		return err
	}

	paths, err := discover.Paths(args, discover.Options{TestsOnly: p.cfg.TestsOnly})
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no Python files found")
	}

	key, err := newCacheKey(p.cfg)
	if err != nil {
		return err
	}
	r, fresh := readCache(p.cfg.Cache, root, key, paths, logger)
	if !fresh {
		r = scan(ctx, p.cfg, root, paths, logger)
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.cfg.Cache != "" {
			if err := writeCache(p.cfg.Cache, key, r); err != nil {
				logger.Warn("cache not written", "path", p.cfg.Cache, "err", err)
			}
		}
	}

	failed := len(r.Failed())
	logger.Info("scan complete", "files", len(r.Files), "tests", r.TestCount(), "failed", failed, "cached", fresh)

	out := applyFilters(r, p.cfg.Filter)
	if err := report.Write(p.stdout, p.cfg.Format, out); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if failed == len(r.Files) {
		return fmt.Errorf("no files could be scanned")
	}
	return nil
}

// scanRoot returns the directory report paths are relative to: the single
// directory argument if that is what was given, else the working directory.
func scanRoot(args []string) (string, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return filepath.Abs(args[0])
		}
	}
	return os.Getwd()
}

func scan(ctx context.Context, cfg config.Config, root string, paths []string, logger *log.Logger) *model.Report {
	opts := []finder.Option{
		finder.WithTarget(cfg.ModelTarget()),
		finder.WithNamespace(cfg.Namespace),
		finder.WithSearchPath(cfg.SearchPath...),
		finder.WithMaxDepth(cfg.MaxDepth),
		finder.WithMaxFileSize(cfg.MaxFileSize),
		finder.WithLogger(logger),
	}
	if cfg.Structural() {
		opts = append(opts, finder.WithStructuralMatching())
	}
	f := finder.New(opts...)

	results := f.FindAll(ctx, paths, cfg.Workers)
	files := make([]model.FileReport, 0, len(results))
	for _, res := range results {
		fr := model.FileReport{Path: graph.RelPath(root, res.Path), Discovery: res.Discovery}
		if res.Err != nil {
			fr.Discovery = nil
			fr.Err = res.Err.Error()
		}
		files = append(files, fr)
	}

	deps := graph.BuildGraph(root, files)
	return &model.Report{
		Root:         filepath.Base(root),
		Target:       f.Target().String(),
		Files:        files,
		Dependencies: deps,
		Bases:        graph.Rank(files, deps),
	}
}

func applyFilters(r *model.Report, f config.Filter) *model.Report {
	if f.File != "" {
		r = filter.ByFile(r, f.File)
	}
	if f.Class != "" {
		r = filter.ByClass(r, f.Class)
	}
	r = filter.ByTags(r, f.Tags, f.IncludeUntagged)
	if f.MaxFiles > 0 {
		r = filter.SelectFiles(r, f.MaxFiles)
	}
	return r
}

// cacheKey holds the settings that change what discovery finds. A cached
// report is only reused under an equal key.
type cacheKey struct {
	Mode        string   `json:"mode"`
	Namespace   string   `json:"namespace"`
	Target      string   `json:"target"`
	SearchPath  []string `json:"search_path"`
	MaxDepth    int      `json:"max_depth"`
	MaxFileSize int64    `json:"max_file_size"`
}

// newCacheKey captures cfg's discovery settings. Search path entries are
// made absolute and sorted.
func newCacheKey(cfg config.Config) (cacheKey, error) {
	searchPath := make([]string, 0, len(cfg.SearchPath))
	for _, dir := range cfg.SearchPath {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return cacheKey{}, fmt.Errorf("search path %s: %w", dir, err)
		}
		searchPath = append(searchPath, abs)
	}
	slices.Sort(searchPath)
	return cacheKey{
		Mode:        cfg.Mode,
		Namespace:   cfg.Namespace,
		Target:      cfg.ModelTarget().String(),
		SearchPath:  searchPath,
		MaxDepth:    cfg.MaxDepth,
		MaxFileSize: cfg.MaxFileSize,
	}, nil
}

func (k cacheKey) equal(o cacheKey) bool {
	return k.Mode == o.Mode &&
		k.Namespace == o.Namespace &&
		k.Target == o.Target &&
		slices.Equal(k.SearchPath, o.SearchPath) &&
		k.MaxDepth == o.MaxDepth &&
		k.MaxFileSize == o.MaxFileSize
}

// cacheFile is the on-disk cache: the unfiltered report and the settings it
// was computed under.
type cacheFile struct {
	Key    cacheKey        `json:"key"`
	Report report.Document `json:"report"`
}

// readCache returns the cached report when it was computed under key and
// covers exactly the files about to be scanned, and none of those files,
// the ancestor files they inherited from, their directories or the search
// path directories changed since the cache was written.
func readCache(cachePath, root string, key cacheKey, paths []string, logger *log.Logger) (*model.Report, bool) {
	if cachePath == "" {
		return nil, false
	}
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	fh, err := os.Open(cachePath)
	if err != nil {
		return nil, false
	}
	defer fh.Close()

	var cf cacheFile
	if err := json.NewDecoder(fh).Decode(&cf); err != nil {
		logger.Debug("ignoring cache", "path", cachePath, "err", err)
		return nil, false
	}
	if cf.Report.Version != report.Version {
		logger.Debug("ignoring cache", "path", cachePath, "version", cf.Report.Version)
		return nil, false
	}
	if !cf.Key.equal(key) {
		logger.Debug("cache settings changed", "path", cachePath)
		return nil, false
	}
	r := cf.Report.Report()
	if len(r.Files) != len(paths) {
		return nil, false
	}

	cacheMtime := cacheInfo.ModTime()
	olderThanCache := func(path string) bool {
		fi, err := os.Stat(path)
		return err == nil && fi.ModTime().Before(cacheMtime)
	}
	for _, dir := range key.SearchPath {
		// a missing directory only matters once it appears
		if _, err := os.Stat(dir); err == nil && !olderThanCache(dir) {
			return nil, false
		}
	}
	for i, path := range paths {
		if r.Files[i].Path != graph.RelPath(root, path) || !olderThanCache(path) || !olderThanCache(filepath.Dir(path)) {
			return nil, false
		}
		if d := r.Files[i].Discovery; d != nil {
			for _, a := range d.Ancestors {
				if !olderThanCache(a.Path) {
					return nil, false
				}
			}
		}
	}
	return r, true
}

func writeCache(cachePath string, key cacheKey, r *model.Report) error {
	fh, err := os.Create(cachePath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cacheFile{Key: key, Report: report.NewDocument(r)}); err != nil {
		return errors.Join(err, fh.Close())
	}
	return fh.Close()
}
