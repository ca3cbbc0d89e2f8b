package prioritize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/sift/internal/message"
)

// maxTextLen bounds how much of each message body is shown to the model,
// counted in characters, not bytes.
const maxTextLen = 300

// FormatMessages renders records into the numbered text block the scoring
// prompt embeds, one line per message:
//
//	N. [channel] sender [context]: text
//
// where [context] lists mention count, reply count, file and reaction
// indicators, present only when nonzero. Deterministic for identical input.
func FormatMessages(records []message.Record) string {
	lines := make([]string, 0, len(records))

	for i := range records {
		r := &records[i]

		channel := r.ChannelName
		if channel == "" {
			channel = r.ChannelID
		}
		if channel == "" {
			channel = "Unknown"
		}
		sender := r.UserName
		if sender == "" {
			sender = r.UserID
		}
		if sender == "" {
			sender = "Unknown"
		}

		text := truncateText(r.Text, maxTextLen)

		var indicators []string
		if n := len(r.MentionedUsers); n > 0 {
			indicators = append(indicators, fmt.Sprintf("mentions %d users", n))
		}
		if r.IsThreadParent {
			indicators = append(indicators, fmt.Sprintf("%d replies", r.ReplyCount))
		}
		if r.HasFiles {
			indicators = append(indicators, "has files")
		}
		if r.ReactionCount > 0 {
			indicators = append(indicators, fmt.Sprintf("%d reactions", r.ReactionCount))
		}

		context := ""
		if len(indicators) > 0 {
			context = " [" + strings.Join(indicators, ", ") + "]"
		}

		lines = append(lines, fmt.Sprintf("%d. [%s] %s%s: %s", i+1, channel, sender, context, text))
	}

	return strings.Join(lines, "\n")
}

// truncateText cuts s to at most limit characters. Cuts land on rune
// boundaries so multibyte text never degrades into invalid UTF-8.
func truncateText(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
