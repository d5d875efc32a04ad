// Package logging builds the structured logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/phobologic/testscan/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg. Without a log file it writes human-readable
// lines to stderr; with one it writes timestamped logfmt to a size-rotated
// file. The returned Closer releases the file.
func New(stderr io.Writer, cfg config.Log, verbose bool) (*log.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = log.DebugLevel
	}

	if strings.TrimSpace(cfg.File) == "" {
		logger := log.NewWithOptions(stderr, log.Options{
			ReportTimestamp: false,
			Level:           level,
			Prefix:          "testscan",
		})
		return logger, nopCloser{}, nil
	}

	logWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	logger := log.NewWithOptions(logWriter, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Formatter:       log.LogfmtFormatter,
	})
	return logger, logWriter, nil
}

// ParseLevel accepts debug, info, warn (or warning), error and fatal.
// An empty string means warn.
func ParseLevel(value string) (log.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return log.WarnLevel, nil
	case "warning":
		value = "warn"
	}
	level, err := log.ParseLevel(value)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q", value)
	}
	return level, nil
}
