package util

import "strings"

// SanitizePostgresText makes user input safe to bind as a Postgres text
// parameter: invalid UTF-8 is dropped and NUL bytes, which Postgres text
// cannot hold, are removed.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
