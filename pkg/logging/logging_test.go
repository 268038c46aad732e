package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_SOURCE", "true")

	cfg := DefaultConfig()
	if cfg.Level != slog.LevelDebug {
		t.Errorf("level: %v", cfg.Level)
	}
	if !cfg.JSON {
		t.Error("LOG_FORMAT=JSON should enable json output")
	}
	if !cfg.AddSource {
		t.Error("LOG_SOURCE=true should add source locations")
	}
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "invoice", "INV001")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("expected one json record, got %q: %v", line, err)
	}
	if rec["invoice"] != "INV001" {
		t.Errorf("attribute missing: %v", rec)
	}
	if slog.Default() != logger {
		t.Error("Setup should install the default logger")
	}
}

func TestSetup_RedactsSecrets(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(Config{Output: &buf})

	logger.With("component", "auth").Info("signing in",
		"email", "me@example.com",
		"password", "hunter2",
		"secret_answer", "fluffy",
		"Token", "ya29.abc",
	)

	line := buf.String()
	for _, leaked := range []string{"hunter2", "fluffy", "ya29.abc"} {
		if strings.Contains(line, leaked) {
			t.Errorf("secret %q leaked: %s", leaked, line)
		}
	}
	if !strings.Contains(line, "email=me@example.com") {
		t.Errorf("non-secret attribute dropped: %s", line)
	}
	if strings.Count(line, Redacted) != 3 {
		t.Errorf("expected 3 redactions: %s", line)
	}
}
