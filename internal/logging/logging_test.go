package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"crypto-risk-engine/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"uppercase", "DEBUG", zerolog.DebugLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"unknown defaults to info", "loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("Expected level %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNew_AppliesConfiguredLevel(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "warn", JSONFormat: true})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %v", logger.GetLevel())
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	logger := New(config.LoggingConfig{Level: "info", Output: path, JSONFormat: true})
	logger.Info().Str("symbol", "BTCUSDT").Msg("replay started")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist, got error: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"message":"replay started"`) {
		t.Errorf("Expected JSON log line with message, got %q", line)
	}
	if !strings.Contains(line, `"symbol":"BTCUSDT"`) {
		t.Errorf("Expected symbol field in log line, got %q", line)
	}
}

func TestNew_FileOutputAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	first := New(config.LoggingConfig{Level: "info", Output: path, JSONFormat: true})
	first.Info().Msg("first run")
	second := New(config.LoggingConfig{Level: "info", Output: path, JSONFormat: true})
	second.Info().Msg("second run")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist, got error: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("Expected 2 log lines, got %d", got)
	}
}
