package common

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// SingleLine folds line breaks into spaces so a value renders as one row.
func SingleLine(s string) string {
	return lineBreaks.Replace(s)
}

// Truncate renders s as a single row at most maxLen cells wide, ending in
// "…" when cut. Wide runes (CJK, emoji) count as two cells.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	return ansi.Truncate(SingleLine(s), maxLen, "…")
}

// Tail returns the last n elements of lines.
func Tail(lines []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
