// Package logging configures the zerolog logger shared by the cache service.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
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
	File FileConfig
}

// FileConfig configures the rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
		File: FileConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

var (
	fileMu sync.Mutex
	file   *lumberjack.Logger
)

// Setup configures the global zerolog logger. Calling it again replaces the
// previous configuration and closes a previously opened log file.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out}
	}

	fileMu.Lock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if cfg.File.Path != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   true,
		}
		// The file always gets JSON, whatever the console format.
		output = zerolog.MultiLevelWriter(output, file)
	}
	fileMu.Unlock()

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Close closes the log file opened by Setup, if any.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
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

// NewLogger derives the logger of one component from parent.
func NewLogger(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: cache hit/miss, keys written with TTL and tags, tag flushes,
// coalesced misses, per-entity warm-ups.
//
// Info: tenant warm-ups, admin writes and deletes, expired sweeps, server
// startup/shutdown.
//
// Warn: degraded cache operations (backend unreachable, breaker open,
// undecodable entries), failed invalidation steps, partial tag flushes,
// invalid key patterns, namespace flushes.
//
// Error: configuration failures, unreachable data store at startup.
//
// Context Fields:
//   - component: emitting subsystem (store, manager, api, cli)
//   - family: entity cache family (course, user, dashboard, category)
//   - key, tag, pattern: cache key, tag or pattern involved
//   - scope, step: invalidation cascade and its failing step
//   - tenant_id, course_id, user_id: entity scope
//   - request_id: admin HTTP request id
