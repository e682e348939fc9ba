// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File additionally writes JSON logs to a rotated file when set.
	File string

	// FileMaxSizeMB is the size at which the file is rotated.
	FileMaxSizeMB int

	// FileMaxBackups is the number of rotated files kept.
	FileMaxBackups int
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Pretty:         false,
		Output:         os.Stderr,
		FileMaxSizeMB:  100,
		FileMaxBackups: 10,
	}
}

var (
	rotatorMu sync.Mutex
	rotator   *lumberjack.Logger
)

// Setup configures the global zerolog logger.
// If the log file cannot be prepared, logging continues on Output only and
// the problem is reported through the returned logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	fileErr := swapRotator(cfg)
	if r := currentRotator(); r != nil {
		output = zerolog.MultiLevelWriter(output, r)
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", cfg.File).Msg("Log file unavailable, logging to output only")
	}

	return logger
}

// swapRotator replaces the file writer according to cfg.
func swapRotator(cfg Config) error {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	if cfg.File == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	rotator = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.FileMaxSizeMB,
		MaxBackups: cfg.FileMaxBackups,
		Compress:   true,
		LocalTime:  true,
	}
	return nil
}

func currentRotator() *lumberjack.Logger {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()
	return rotator
}

// Close flushes and closes the log file, if any.
func Close() error {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()

	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, partition)
//   - Partition initialization
//   - Applied document overrides
//
// Info: Normal operation events
//   - Deleted cache records
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Cache store errors (fallback to live render)
//   - Skipped override directives
//   - Render retry attempts
//
// Error: Error conditions requiring attention
//   - Failed renders (after retries)
//   - Backend unavailable at startup
//   - Configuration errors
//
// Context Fields:
//   - key: Normalized cache key
//   - partition: Cache partition (origin host)
//   - method: HTTP request method
//   - status_code: HTTP status code
//   - cache_hit: Boolean indicating cache hit
//   - operation: Store operation (init, get, set, delete)
//   - error_class: Render error classification (client, server, network)
//   - duration: Render duration
