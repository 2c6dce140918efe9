package util

import (
	"path/filepath"
	"strconv"
	"strings"
)

// TruncateString cuts s to maxRunes runes, appending "..." when it was cut.
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// SafeFilename reduces an uploaded file name to a single path element made
// of letters, digits, dot, dash and underscore.
func SafeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var builder strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			builder.WriteRune(r)
		case r == ' ':
			builder.WriteRune('_')
		}
	}
	out := strings.TrimLeft(builder.String(), ".")
	if out == "" {
		return "upload.csv"
	}
	return out
}

// FormatSize renders a byte count with the largest binary unit that keeps it
// at or above one, e.g. 10MB or 1.5KB.
func FormatSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	return strconv.FormatFloat(value, 'f', -1, 64) + units[unit]
}
