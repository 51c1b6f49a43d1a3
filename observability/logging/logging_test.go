package logging

import (
	"log/slog"
	"testing"
)

func TestLevelFromEnv(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"banana":  slog.LevelInfo,
	}
	for value, want := range cases {
		t.Setenv(levelEnv, value)
		if got := levelFromEnv(); got != want {
			t.Fatalf("levelFromEnv(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestRenameCoreKeys(t *testing.T) {
	attr := renameCoreKeys(nil, slog.String(slog.MessageKey, "hello"))
	if attr.Key != "message" {
		t.Fatalf("message key = %q", attr.Key)
	}
	attr = renameCoreKeys(nil, slog.Any(slog.LevelKey, slog.LevelWarn))
	if attr.Key != "severity" || attr.Value.String() != "WARN" {
		t.Fatalf("level attr = %s=%s", attr.Key, attr.Value)
	}
	attr = renameCoreKeys(nil, slog.String("custom", "kept"))
	if attr.Key != "custom" {
		t.Fatalf("custom key rewritten to %q", attr.Key)
	}
}
