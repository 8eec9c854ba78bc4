package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies that parseLogLevel correctly parses log level
// strings from environment variables, handling case-insensitivity, aliases and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"warning", zap.WarnLevel},
		{"  warn  ", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"critical", zap.ErrorLevel},
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
	for _, format := range []string{"", "console"} {
		t.Run("format="+format, func(t *testing.T) {
			t.Setenv("LOG_FORMAT", format)
			t.Setenv("LOG_LEVEL", "debug")

			logger, err := NewLogger("weather-dashboard")
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if !logger.Core().Enabled(zap.DebugLevel) {
				t.Error("debug level not enabled with LOG_LEVEL=debug")
			}
			logger.Debug("test message")
		})
	}
}

func TestFlushTelemetry_LogsTotals(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	CacheHitsTotal.WithLabelValues("flush_test").Add(3)

	if err := FlushTelemetry(context.Background(), zap.New(core)); err != nil {
		t.Fatalf("FlushTelemetry() error = %v", err)
	}

	entries := logs.FilterMessage("final telemetry").All()
	if len(entries) != 1 {
		t.Fatalf("final telemetry entries = %d, want 1", len(entries))
	}
	if hits, _ := entries[0].ContextMap()["cache_hits"].(float64); hits < 3 {
		t.Errorf("cache_hits = %v, want >= 3", hits)
	}
}

func TestFlushTelemetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := FlushTelemetry(ctx, zap.NewNop()); err == nil {
		t.Error("FlushTelemetry() error = nil, want context error")
	}
	if err := FlushTelemetry(ctx, nil); err != nil {
		t.Errorf("FlushTelemetry(nil logger) error = %v, want nil", err)
	}
}
