package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{
			name:     "short bytes",
			attr:     slog.Any("value", []byte{0x01, 0xab}),
			expected: "01ab",
		},
		{
			name:     "empty bytes",
			attr:     slog.Any("value", []byte{}),
			expected: "",
		},
		{
			name:     "string untouched",
			attr:     slog.String("key", "MAP_0000000000000005_"),
			expected: "MAP_0000000000000005_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatBytes(tt.attr)
			if result.Value.String() != tt.expected {
				t.Errorf("formatBytes() = %q, want %q", result.Value.String(), tt.expected)
			}
		})
	}
}

func TestFormatBytes_Truncates(t *testing.T) {
	long := bytes.Repeat([]byte{0xff}, maxBytesLogged+10)

	got := formatBytes(slog.Any("value", long)).Value.String()
	if !strings.HasPrefix(got, strings.Repeat("ff", maxBytesLogged)) {
		t.Errorf("expected hex prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "...(74 bytes)") {
		t.Errorf("expected length suffix, got %q", got)
	}
}

func TestFormatBytes_NonBytesAny(t *testing.T) {
	a := slog.Any("count", []int{1, 2})
	got := formatBytes(a)
	if got.Key != a.Key || !reflect.DeepEqual(got.Value.Any(), a.Value.Any()) {
		t.Errorf("non-byte attribute changed: %v", got)
	}
}

func TestLogger_BytesInOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "debug",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Debug("set", "value", []byte("hi"))

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if v, ok := logEntry["value"].(string); !ok || v != "6869" {
		t.Errorf("Expected value='6869', got %v", logEntry["value"])
	}
}
