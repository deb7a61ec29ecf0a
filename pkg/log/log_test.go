package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestMapLevelToZapLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    Level
		expected string
	}{
		{"debug level", LevelDebug, "debug"},
		{"info level", LevelInfo, "info"},
		{"progress level", LevelProgress, "info"},
		{"minimal level", LevelMinimal, "warn"},
		{"warn level", LevelWarn, "warn"},
		{"error level", LevelError, "error"},
		{"unknown level defaults to info", Level("unknown"), "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zapLevel := mapLevelToZapLevel(tt.level)
			if zapLevel.String() != tt.expected {
				t.Errorf("mapLevelToZapLevel() = %v, want %v", zapLevel.String(), tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelProgress, false},
		{" warn ", LevelWarn, false},
		{"loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWritesToConfiguredOutput(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelDebug, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Debug("branch reconciled", "branch", "feature/eng-1")
	Warnf("push failed: %s", "rejected")

	out := buf.String()
	if !strings.Contains(out, "branch reconciled") || !strings.Contains(out, "feature/eng-1") {
		t.Errorf("debug entry missing from output: %q", out)
	}
	if !strings.Contains(out, "push failed: rejected") {
		t.Errorf("warn entry missing from output: %q", out)
	}
}

func TestLevelFiltersLowerSeverity(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelMinimal, Output: &buf}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Info("hidden info")
	Progress("hidden progress")
	Warn("visible warning")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info/progress to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible warning") {
		t.Errorf("expected warning in output, got %q", out)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelProgress {
		t.Errorf("DefaultConfig().Level = %v, want %v", cfg.Level, LevelProgress)
	}
	if cfg.Output == nil {
		t.Error("DefaultConfig().Output should not be nil")
	}
}

func TestGetInitializesDefaultLogger(t *testing.T) {
	Reset()
	defer Reset()

	if logger := Get(); logger == nil {
		t.Fatal("Get() returned nil logger")
	}
	if err := Sync(); err != nil {
		// stderr sync can fail on some platforms; only log it
		t.Logf("Sync() error = %v", err)
	}
}
