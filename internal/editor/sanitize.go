package editor

import (
	"strings"
)

// quotePairs are the wrapping quote styles models like to add around
// rewritten text.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'“', '”'}, // “ ”
	{'‘', '’'}, // ‘ ’
}

// SanitizeModelOutput post-processes raw streamed text before it is
// committed to the document: wrapping quotation marks are stripped, trailing
// completion-sentinel markers are removed, and literal "\n" escape markers
// become real newlines. Idempotent; already-clean text passes through
// unchanged.
func SanitizeModelOutput(raw string) string {
	s := strings.TrimSpace(raw)
	// Sentinels may sit outside the wrapping quotes ("text"*) or inside
	// them ("text*"), so strip on both sides of the quote pass.
	s = stripTrailingSentinels(s)
	s = stripWrappingQuotes(s)
	s = stripTrailingSentinels(s)
	s = NormalizeBreaks(s)
	return strings.TrimSpace(s)
}

// NormalizeBreaks converts literal backslash-n markers, which models emit
// when asked for deliberate line breaks, into real newlines.
func NormalizeBreaks(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

func stripWrappingQuotes(s string) string {
	for {
		runes := []rune(s)
		if len(runes) < 2 {
			return s
		}
		stripped := false
		for _, pair := range quotePairs {
			if runes[0] == pair[0] && runes[len(runes)-1] == pair[1] {
				s = strings.TrimSpace(string(runes[1 : len(runes)-1]))
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func stripTrailingSentinels(s string) string {
	s = strings.TrimRight(s, " \t\n")
	s = strings.TrimRight(s, "*")
	return strings.TrimRight(s, " \t\n")
}
