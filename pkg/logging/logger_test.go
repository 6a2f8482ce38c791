package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}

	if cfg.File.Path != "" {
		t.Errorf("Expected no log file by default, got %q", cfg.File.Path)
	}

	if cfg.File.MaxSizeMB != 100 || cfg.File.MaxBackups != 3 || cfg.File.MaxAgeDays != 28 {
		t.Errorf("Unexpected rotation defaults: %+v", cfg.File)
	}
}

func TestSetup_WritesAtConfiguredLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		emit  func(zerolog.Logger)
		want  string
	}{
		{LevelDebug, func(l zerolog.Logger) { l.Debug().Str("key", "t3:dashboard:stats").Msg("Cache hit") }, "Cache hit"},
		{LevelInfo, func(l zerolog.Logger) { l.Info().Int64("tenant_id", 3).Msg("Tenant cache cleared") }, "Tenant cache cleared"},
		{LevelWarn, func(l zerolog.Logger) { l.Warn().Str("operation", "set").Msg("Cache put failed") }, "Cache put failed"},
		{LevelError, func(l zerolog.Logger) { l.Error().Msg("Invalid configuration") }, "Invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(Setup(Config{Level: tt.level, Output: buf}))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"WARNING", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	root := Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger(root, "store")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"store"`) {
		t.Errorf("Expected output to contain the store component, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestSetup_WarnFiltersHitMissNoise(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Setup(Config{Level: "warning", Output: buf}), "cache")

	logger.Debug().Msg("Cache miss")
	logger.Info().Msg("Cascade finished")
	logger.Warn().Msg("Cache backend unavailable")

	output := buf.String()
	for _, filtered := range []string{"Cache miss", "Cascade finished"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered at warn level", filtered)
		}
	}
	if !strings.Contains(output, "Cache backend unavailable") {
		t.Errorf("warn entry missing from %q", output)
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lms-cache.log")
	console := &bytes.Buffer{}

	cfg := DefaultConfig()
	cfg.Output = console
	cfg.Pretty = true
	cfg.File.Path = path
	logger := Setup(cfg)
	t.Cleanup(func() { _ = Close() })

	logger.Warn().Str("key", "c42:course").Msg("Cache put failed")

	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"key":"c42:course"`) {
		t.Errorf("Expected JSON entry in log file, got %q", data)
	}
	if !strings.Contains(console.String(), "Cache put failed") {
		t.Errorf("Expected console output as well, got %q", console.String())
	}
}

func TestClose_WithoutFile(t *testing.T) {
	Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})
	if err := Close(); err != nil {
		t.Errorf("Close() without file = %v, want nil", err)
	}
}
