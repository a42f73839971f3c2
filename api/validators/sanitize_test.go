package validators

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  hello  ", maxLen: 10, want: "hello"},
		{name: "no limit", input: " long reason ", maxLen: 0, want: "long reason"},
		{name: "ascii cut", input: "abcdef", maxLen: 4, want: "abcd"},
		{name: "cut before multibyte rune", input: "café ok", maxLen: 4, want: "caf"},
		{name: "keeps whole multibyte rune", input: "café ok", maxLen: 5, want: "café"},
		{name: "emoji boundary", input: "\U0001F331\U0001F331", maxLen: 6, want: "\U0001F331"},
		{name: "cut inside first rune", input: "été", maxLen: 1, want: ""},
		{name: "trailing space after cut", input: "ab cd", maxLen: 3, want: "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeString(tc.input, tc.maxLen)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSanitizeStringLongReasonStaysValid(t *testing.T) {
	reason := strings.Repeat("ü", 400)
	got := SanitizeString(reason, 500)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 250, utf8.RuneCountInString(got))
}
