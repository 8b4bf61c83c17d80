package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces credential material in log output.
const RedactedValue = "[REDACTED]"

var sensitiveFragments = []string{
	"secret",
	"token",
	"password",
	"authorization",
	"apikey",
	"api_key",
	"bearer",
}

// IsSensitive reports whether an attribute key names credential material.
// Matching is case-insensitive on substrings, so "hmacSecret" and
// "X-API-Key" both count.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskValue returns RedactedValue for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField always masks value, whatever the key.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}

func redact(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	switch attr.Value.Kind() {
	case slog.KindGroup:
		return attr
	case slog.KindString:
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	default:
		return slog.String(attr.Key, RedactedValue)
	}
}
