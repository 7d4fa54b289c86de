package broadcast

import (
	"unicode/utf8"

	"commitbot/internal/model"
)

// Formatting budget. The channel counts links at a fixed shortened width,
// so the overhead constants cover the two newline separators plus that
// link allowance rather than the literal URL length.
const (
	maxMessageLen      = 280
	bareOverhead       = 25
	attributedOverhead = 27
	ellipsis           = "..."
)

// Format renders a commit (plus an optional resolved handle) into a message
// that fits the channel budget. Pure: no lookups, no side effects. The URL
// is always kept whole; only the commit message is truncated. With an
// attribution long enough to exhaust the budget on its own, the message
// collapses to just the ellipsis marker.
func Format(c *model.Commit, handle string) string {
	attribution := ""
	if c.Author != "" {
		attribution = "by " + c.Author
		if handle != "" {
			attribution += " (@" + handle + ")"
		}
	}

	message := c.Message

	if attribution == "" {
		if runeLen(message)+bareOverhead > maxMessageLen {
			message = truncate(message, maxMessageLen-bareOverhead-len(ellipsis)) + ellipsis
		}
		return message + "\n\n" + c.URL
	}

	if runeLen(message)+runeLen(attribution)+attributedOverhead > maxMessageLen {
		limit := maxMessageLen - attributedOverhead - len(ellipsis) - runeLen(attribution)
		message = truncate(message, limit) + ellipsis
	}
	return message + "\n\n" + attribution + "\n\n" + c.URL
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate cuts s to at most n runes. Negative n clamps to zero.
func truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
