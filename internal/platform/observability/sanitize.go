package observability

import (
	"strings"
	"unicode"
)

// Request-derived log field values are stripped of control characters and
// clamped so they cannot inject structure into the log stream.

const maxFieldRunes = 256

func logSafe(value string, limit int) string {
	if limit <= 0 {
		limit = maxFieldRunes
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(cleaned); len(runes) > limit {
		cleaned = string(runes[:limit])
	}
	return cleaned
}

func safeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return logSafe(route, 180)
}

func safeMethod(method string) string {
	return logSafe(method, 10)
}

// safeUserID clamps identifiers so raw UIDs stay short in log output.
func safeUserID(uid string) string {
	return logSafe(uid, 64)
}
