package format

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
)

// Initials derives up to two uppercase initials for avatar placeholders.
func Initials(name string) string {
	var b strings.Builder
	for i, field := range strings.Fields(name) {
		if i == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(field)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ColorIndex maps an id onto a stable palette slot so an author keeps
// the same avatar color across renders and devices.
func ColorIndex(id string, palette int) int {
	if palette <= 0 {
		return 0
	}
	return int(xxhash.Sum64String(id) % uint64(palette))
}

// ByteSize renders a model file size for the catalog.
func ByteSize(n int64) string {
	if n <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

// ParamCount renders a parameter count the way model cards do.
func ParamCount(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1e9)) + "B"
	case n >= 1_000_000:
		return trimZero(fmt.Sprintf("%.1f", float64(n)/1e6)) + "M"
	case n > 0:
		return fmt.Sprintf("%d", n)
	default:
		return "unknown"
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
