package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newJSON(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { SetLevel("info") })
	return l, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_RecordsLevelAndAttrs(t *testing.T) {
	l, buf := newJSON(t, "debug")

	tests := []struct {
		level string
		log   func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.log("trim", "snap", 7)

			entry := decode(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["msg"] != "trim" {
				t.Errorf("msg = %v, want trim", entry["msg"])
			}
			if entry["snap"] != float64(7) {
				t.Errorf("snap = %v, want 7", entry["snap"])
			}
		})
	}
}

func TestLogger_WithCarriesAttrs(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.With("component", "snapmap").Info("opened")

	if got := decode(t, buf)["component"]; got != "snapmap" {
		t.Errorf("component = %v, want snapmap", got)
	}
}

func TestSetLevel_AppliesToExistingLoggers(t *testing.T) {
	l, buf := newJSON(t, "warn")

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	SetLevel("debug")
	l.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug not logged after SetLevel: %s", buf.String())
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want debug", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"INFO":    "info",
		"warn":    "warn",
		"Warning": "warn",
		"error":   "error",
		"":        "info",
		"verbose": "info",
	}
	for in, want := range tests {
		SetLevel(in)
		if got := GetLevel(); got != want {
			t.Errorf("SetLevel(%q): GetLevel() = %q, want %q", in, got, want)
		}
	}
	SetLevel("info")
}

func TestNew_TextFormat(t *testing.T) {
	for _, format := range []string{"text", "console"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "info", Format: format, Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l.Info("started", "engine", "pebble")
			if !strings.Contains(buf.String(), "engine=pebble") {
				t.Errorf("text output = %q", buf.String())
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	Info("process logger works")
}

func TestSlog(t *testing.T) {
	l, buf := newJSON(t, "info")

	Slog(l).Info("from slog")
	if !strings.Contains(buf.String(), "from slog") {
		t.Errorf("Slog() should share the handler, got: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	l.With("k", "v").Info("dropped")
}
