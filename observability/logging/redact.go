package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue stands in for credentials and client-supplied keys in logs.
const RedactedValue = "[REDACTED]"

// Secret records whether a sensitive value was supplied without emitting it.
// Blank values are logged as empty.
func Secret(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, "")
	}
	return slog.String(key, RedactedValue)
}
