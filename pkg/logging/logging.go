// Package logging sets up the process-wide slog logger for invoicedl.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces the value of any attribute whose key names a secret.
const Redacted = "[REDACTED]"

// secretKeys are attribute key fragments whose values never reach the log.
// Portal passwords and security answers are read interactively and must not
// leak through a stray logger.Debug.
var secretKeys = []string{"password", "answer", "secret", "token"}

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum level written.
	Level slog.Level
	// JSON selects the JSON handler instead of key=value text.
	JSON bool
	// AddSource includes file:line of the logging call.
	AddSource bool
	// Output receives log records. Defaults to os.Stderr, keeping stdout for
	// prompts and progress lines.
	Output io.Writer
}

// DefaultConfig reads LOG_LEVEL (DEBUG, INFO, WARN, ERROR), LOG_FORMAT=json and
// LOG_SOURCE=true from the environment.
func DefaultConfig() Config {
	return Config{
		Level:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		JSON:      strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		AddSource: strings.EqualFold(os.Getenv("LOG_SOURCE"), "true"),
		Output:    os.Stderr,
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from cfg, installs it as slog.Default and returns it.
func Setup(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, Redacted)
		}
	}
	return a
}
