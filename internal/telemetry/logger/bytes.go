package logger

import (
	"encoding/hex"
	"log/slog"
	"strconv"
)

// maxBytesLogged bounds how much of a byte attribute is rendered.
const maxBytesLogged = 64

// formatBytes renders []byte attribute values as hex. Values longer than
// maxBytesLogged are cut and suffixed with their full length.
func formatBytes(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	b, ok := a.Value.Any().([]byte)
	if !ok {
		return a
	}
	return slog.String(a.Key, hexDump(b))
}

func hexDump(b []byte) string {
	if len(b) <= maxBytesLogged {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:maxBytesLogged]) + "...(" + strconv.Itoa(len(b)) + " bytes)"
}
