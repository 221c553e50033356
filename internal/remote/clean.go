package remote

import (
	"regexp"
	"strings"
)

// NoTextSentinel is the answer the prompt asks for when an image has no text.
const NoTextSentinel = "No text found in the image."

var preamblePattern = regexp.MustCompile(`(?i)^(here\s+is|here's|here\s+are|below\s+is|the\s+following\s+is|sure|certainly|extracted\s+text)\b[^\n]*:$`)

// CleanResponse strips the wrapping a model tends to put around extracted
// text: markdown code fences, a one-line lead-in such as "Here is the
// extracted text:", and the no-text sentinel. The text itself is untouched
// apart from trimming surrounding blank space.
func CleanResponse(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))

	lines := strings.Split(s, "\n")
	if len(lines) > 1 && preamblePattern.MatchString(strings.TrimSpace(lines[0])) {
		lines = lines[1:]
	}
	s = strings.TrimSpace(strings.Join(lines, "\n"))

	if strings.HasPrefix(s, "```") {
		lines = strings.Split(s, "\n")
		lines = lines[1:]
		if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
			lines = lines[:n-1]
		}
		s = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	if isNoText(s) {
		return ""
	}
	return s
}

func isNoText(s string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(s), ".")
	return strings.EqualFold(trimmed, strings.TrimRight(NoTextSentinel, "."))
}
