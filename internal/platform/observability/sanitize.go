package observability

import (
	"strings"
	"unicode"
)

const (
	maxIDLen        = 64
	maxRouteLen     = 180
	maxMethodLen    = 10
	maxUserAgentLen = 256
)

// cleanLogValue drops control characters (line breaks included) and truncates to limit runes.
func cleanLogValue(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
