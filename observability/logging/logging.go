package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// levelEnv overrides the minimum log level ("debug", "info", "warn",
// "error"). Unset or unrecognised values fall back to info.
const levelEnv = "PAYWAY_LOG_LEVEL"

// Setup configures process-wide structured JSON logging and returns the base
// logger. Every line carries the service name, the ledger identifier, and the
// environment when one is configured. The standard library logger is bridged
// into the same handler so third-party packages logging through "log" stay on
// one format.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       levelFromEnv(),
		ReplaceAttr: renameCoreKeys,
	})

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
		slog.String("ledger", "payway"),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	base := slog.New(handler).With(args...)
	slog.SetDefault(base)

	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// renameCoreKeys maps slog's default keys onto the field names the log
// pipeline indexes on.
func renameCoreKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(levelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
