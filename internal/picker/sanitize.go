package picker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// MaxQueryLen is the maximum length of a query string in bytes.
const MaxQueryLen = 4096

// ansiRE matches CSI sequences, OSC sequences terminated by ST or BEL,
// charset designations and other two-byte escapes.
var ansiRE = regexp.MustCompile(`\x1b(?:` +
	`\[[0-9;?]*[A-Za-z]` +
	`|\].*?(?:\x1b\\|\x07)` +
	`|[()][A-B0-2]` +
	`|[#*+\-./][A-Za-z0-9]` +
	`)`)

// StripANSI removes ANSI escape sequences from s.
func StripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// ValidateUTF8 replaces each run of invalid UTF-8 bytes with U+FFFD.
func ValidateUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// sanitizeText makes item text safe to draw on a single terminal row.
func sanitizeText(s string) string {
	s = ValidateUTF8(StripANSI(s))
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}

// SanitizeQuery strips control characters from a query given on the
// command line and truncates it to MaxQueryLen bytes. Newlines are
// rejected rather than stripped.
func SanitizeQuery(q string) (string, error) {
	if strings.ContainsAny(q, "\n\r") {
		return "", fmt.Errorf("query must not contain newlines")
	}
	q = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		return r
	}, ValidateUTF8(q))
	if len(q) > MaxQueryLen {
		q = strings.ToValidUTF8(q[:MaxQueryLen], "")
	}
	return q, nil
}

// MiddleTruncate shortens s to maxWidth display columns by replacing its
// middle with an ellipsis. Wide runes count two columns. Below three
// columns s is cut from the right instead.
func MiddleTruncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth < 3 {
		return headCols(s, maxWidth)
	}

	// One column goes to the ellipsis; the head gets the odd column.
	rest := maxWidth - 1
	return headCols(s, (rest+1)/2) + "…" + tailCols(s, rest/2)
}

// headCols returns the longest prefix of s at most cols wide.
func headCols(s string, cols int) string {
	w := 0
	for i, r := range s {
		if w += runewidth.RuneWidth(r); w > cols {
			return s[:i]
		}
	}
	return s
}

// tailCols returns the longest suffix of s at most cols wide.
func tailCols(s string, cols int) string {
	runes := []rune(s)
	w, start := 0, len(runes)
	for i := len(runes) - 1; i >= 0; i-- {
		if w += runewidth.RuneWidth(runes[i]); w > cols {
			break
		}
		start = i
	}
	return string(runes[start:])
}
