package helpers

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeTerminal replaces control characters and invalid UTF-8 bytes with
// visible escapes so remote data (process arguments, labels) cannot drive
// the operator's terminal. Tabs and newlines are kept.
//
//	"hi\x1b[31m" -> `hi\x1b[31m`
//	"bad:\xff"   -> `bad:\xff`
func SanitizeTerminal(s string) string {
	if isClean(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, `\x%02x`, s[i])
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r) && r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case unicode.IsControl(r):
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}

	return b.String()
}

func isClean(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return false
		}
		i += size
	}
	return true
}
