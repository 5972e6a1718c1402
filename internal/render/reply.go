// ABOUTME: Final shaping of agent replies for chat transports
// ABOUTME: Renders, substitutes the empty-reply placeholder, and enforces the length limit

package render

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxLength is the longest reply sent in one message. Telegram rejects
	// anything over 4096 characters; the margin leaves room for the suffix.
	MaxLength = 4000

	// TruncationSuffix marks a reply that was cut at MaxLength.
	TruncationSuffix = "\n\n... (truncated)"

	// NoResponse replaces a reply that rendered to nothing.
	NoResponse = "(No response from Claude)"
)

// Reply turns an agent's Markdown reply into the text sent to the user.
func Reply(markdown string) string {
	out := HTML(markdown)
	if strings.TrimSpace(out) == "" {
		out = NoResponse
	}
	return Truncate(out, MaxLength)
}

// Truncate cuts s to limit characters and appends TruncationSuffix. Strings
// within the limit are returned unchanged. The cut ignores markup.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + TruncationSuffix
}
