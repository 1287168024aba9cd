package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeModelOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean text untouched", "just a tweet", "just a tweet"},
		{"wrapping straight quotes", `"quoted tweet"`, "quoted tweet"},
		{"wrapping single quotes", `'quoted tweet'`, "quoted tweet"},
		{"wrapping smart quotes", "“quoted tweet”", "quoted tweet"},
		{"nested wrapping quotes", "“\"doubly wrapped\"”", "doubly wrapped"},
		{"interior quotes kept", `she said "hi" to me`, `she said "hi" to me`},
		{"trailing sentinel", "done*", "done"},
		{"trailing sentinel run", "done ***", "done"},
		{"sentinel after newline", "done\n*", "done"},
		{"interior asterisk kept", "5 * 3 = 15", "5 * 3 = 15"},
		{"literal break markers", `line one\nline two`, "line one\nline two"},
		{"surrounding whitespace", "  padded  ", "padded"},
		{"everything at once", "  \"first\\nsecond\"**  ", "first\nsecond"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeModelOutput(tt.in))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		`"wrapped"`,
		"trailing**",
		`with\nbreaks`,
		"multi\n\nparagraph text",
	}
	for _, in := range inputs {
		once := SanitizeModelOutput(in)
		twice := SanitizeModelOutput(once)
		assert.Equal(t, once, twice, "sanitize(sanitize(%q)) changed output", in)
	}
}

func TestNormalizeBreaks(t *testing.T) {
	assert.Equal(t, "a\nb", NormalizeBreaks(`a\nb`))
	assert.Equal(t, "no markers", NormalizeBreaks("no markers"))
}
