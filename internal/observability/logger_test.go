package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies LOG_LEVEL parsing is case-insensitive and trims whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"warning", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	logger.Info("test message")
	_ = logger.Sync()
}

func TestNewLogger_FileOutput(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", `"msg":"refresh settled"`},
		{"console", "INFO\t"},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dashboard.log")
			logger, err := NewLogger(LoggerConfig{Format: tt.format, Output: path})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			logger.Info("refresh settled")
			_ = logger.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("log output = %q, want substring %q", data, tt.want)
			}
			if !strings.Contains(string(data), "refresh settled") || !strings.Contains(string(data), "weather-dashboard") {
				t.Errorf("log output missing app field: %q", data)
			}
		})
	}
}

func TestNewLogger_DebugSuppressedAtWarn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.log")
	logger, err := NewLogger(LoggerConfig{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "shown") {
		t.Errorf("unexpected log output %q", data)
	}
}

func TestLoggerConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_FILE", "/tmp/x.log")
	got := LoggerConfigFromEnv()
	want := LoggerConfig{Level: "debug", Format: "console", Output: "/tmp/x.log"}
	if got != want {
		t.Errorf("LoggerConfigFromEnv() = %+v, want %+v", got, want)
	}
}

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil); err != nil {
		t.Errorf("FlushTelemetry(nil) error = %v", err)
	}
}

func TestFlushTelemetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := FlushTelemetry(ctx, zap.NewNop()); err == nil {
		t.Error("FlushTelemetry() expected error for cancelled context")
	}
}
