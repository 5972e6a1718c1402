// ABOUTME: Tests for reply shaping: placeholder substitution and truncation
// ABOUTME: Truncation is checked on the final HTML, counted in characters

package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_ShortStringUnchanged(t *testing.T) {
	s := strings.Repeat("a", MaxLength)
	assert.Equal(t, s, Truncate(s, MaxLength))
}

func TestTruncate_LongString(t *testing.T) {
	s := strings.Repeat("a", 5000)

	got := Truncate(s, MaxLength)

	assert.True(t, strings.HasSuffix(got, TruncationSuffix))
	assert.Equal(t, MaxLength, utf8.RuneCountInString(strings.TrimSuffix(got, TruncationSuffix)))
	assert.Equal(t, MaxLength+utf8.RuneCountInString(TruncationSuffix), utf8.RuneCountInString(got))
}

func TestTruncate_CountsCharactersNotBytes(t *testing.T) {
	s := strings.Repeat("é", 5000)

	got := Truncate(s, MaxLength)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", MaxLength)+TruncationSuffix, got)
}

func TestTruncate_CutInsideTagKeepsLength(t *testing.T) {
	// The cut lands in the middle of "<b>": the length rule wins over markup.
	s := strings.Repeat("x", MaxLength-1) + "<b>bold</b>" + strings.Repeat("y", 1000)

	got := Truncate(s, MaxLength)

	assert.Equal(t, strings.Repeat("x", MaxLength-1)+"<"+TruncationSuffix, got)
}

func TestReply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "renders markdown", input: "# Hi\nWelcome", want: "<b>Hi</b>\n\nWelcome"},
		{name: "empty becomes placeholder", input: "", want: NoResponse},
		{name: "whitespace becomes placeholder", input: "  \n\n ", want: NoResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reply(tt.input))
		})
	}
}

func TestReply_TruncatesAfterRendering(t *testing.T) {
	// 3999 characters of Markdown grow past the limit once wrapped in tags.
	input := "**" + strings.Repeat("a", 3995) + "**"

	got := Reply(input)

	assert.True(t, strings.HasPrefix(got, "<b>"))
	assert.True(t, strings.HasSuffix(got, TruncationSuffix))
	assert.Equal(t, MaxLength, utf8.RuneCountInString(strings.TrimSuffix(got, TruncationSuffix)))
}
