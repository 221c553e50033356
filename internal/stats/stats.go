package stats

import (
	"strings"
	"unicode/utf8"
)

// TextStatistics holds counts derived from a piece of extracted text.
type TextStatistics struct {
	// Characters is the number of Unicode code points, whitespace included.
	Characters int `json:"characters"`

	// Words is the number of maximal runs of non-whitespace characters.
	Words int `json:"words"`

	// Lines is the number of newline-separated segments after dropping a
	// single trailing newline. Empty text has zero lines.
	Lines int `json:"lines"`
}

// Compute returns the statistics for text. It is a pure function.
func Compute(text string) TextStatistics {
	if text == "" {
		return TextStatistics{}
	}
	trimmed := strings.TrimSuffix(text, "\n")
	return TextStatistics{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
		Lines:      strings.Count(trimmed, "\n") + 1,
	}
}
