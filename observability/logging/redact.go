package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// logAllowlist names the log keys that are safe to emit unredacted:
// decision outcomes, classifications, and timing. It never admits an
// identity digest, a capability id, or a trace id — any of those can be
// correlated back to a specific agent's activity across log lines.
var logAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"component": {},
	"decision":  {},
	"tier":      {},
	"domain":    {},
	"stage":     {},
	"status":    {},
	"reason":    {},
	"error":     {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := logAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the log keys that are allowed
// to be emitted without redaction. Tests use this to ensure sensitive keys
// remain masked.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(logAllowlist))
	for key := range logAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the canonical redacted placeholder for non-empty values.
// Empty values are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns a slog.Attr that redacts the supplied value unless the
// key is explicitly allowlisted. The original key casing is preserved for
// readability.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskIdentity redacts an identity's string form under the key "identity".
// Every log line that would otherwise print a declarer, grantee, or issuer
// identity should route through this instead of a bare slog.String call.
func MaskIdentity(value string) slog.Attr {
	return MaskField("identity", value)
}

// MaskCapabilityID redacts a capability id under the key "capability_id".
func MaskCapabilityID(value string) slog.Attr {
	return MaskField("capability_id", value)
}

// MaskTraceID redacts a trace id under the key "trace_id".
func MaskTraceID(value string) slog.Attr {
	return MaskField("trace_id", value)
}
