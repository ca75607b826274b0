// Package logger provides structured logging for pulse on top of zerolog.
//
// A single process-wide logger is configured once with Init. Components log
// either through the printf helpers (Debug, Info, Warn, Error) or through L
// and Ctx for structured fields. Ctx attaches the request and run IDs carried
// by a context so that every line of one ingestion run or HTTP request can be
// correlated.
//
// Verbose mode (the --verbose flag) lowers the level to debug regardless of
// the configured level.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is trace, debug, info, warn or error. Default: info.
	Level string

	// Format is json or console. Default: console.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	mu      sync.RWMutex
	verbose bool
	cfg     = Config{Level: "info", Format: "console", Output: os.Stderr}
	log     = build(cfg, false)
)

// Init reconfigures the global logger. It is safe to call more than once.
func Init(c Config) {
	mu.Lock()
	defer mu.Unlock()
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	cfg = c
	log = build(cfg, verbose)
}

func build(c Config, verbose bool) zerolog.Logger {
	out := c.Output
	if c.Format == "console" {
		out = zerolog.ConsoleWriter{Out: c.Output, TimeFormat: "15:04:05", NoColor: true}
	}
	level := ParseLevel(c.Level)
	if verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel converts a level name into a zerolog level.
// Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	log = build(cfg, verbose)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	cfg.Output = w
	log = build(cfg, verbose)
}

// L returns the global logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	L().Debug().Msg(fmt.Sprintf(format, args...))
}

// Section marks the start of a pipeline stage in verbose output.
func Section(name string) {
	L().Debug().Str("section", name).Msg("=== " + name + " ===")
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	L().Info().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...any) {
	L().Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs err with a formatted message at error level.
func Error(err error, format string, args ...any) {
	L().Error().Err(err).Msg(fmt.Sprintf(format, args...))
}

// Elapsed returns a field-ready duration in milliseconds.
func Elapsed(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
