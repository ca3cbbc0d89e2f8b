package prioritize

import (
	"fmt"

	"github.com/linnemanlabs/sift/internal/message"
)

// systemPrompt is the fixed system instruction for the scoring call.
const systemPrompt = "You are an AI assistant that helps prioritize chat messages. Return only valid JSON."

// buildScoringPrompt assembles the content-only scoring prompt. Sender and
// channel identity are deliberately excluded from the scoring instructions:
// those signals are handled by the deterministic multipliers afterwards, and
// letting the model see them would double-count.
func buildScoringPrompt(records []message.Record) string {
	return fmt.Sprintf(`Score these %d chat messages by CONTENT URGENCY only (0-100).

DO NOT consider who sent the message or which channel. Only score the MESSAGE CONTENT.

SCORING GUIDELINES:

URGENT (90-100):
- Production issues, outages, critical errors
- Explicit deadlines: "today", "EOD", "ASAP", "urgent"
- Direct blocking requests: "waiting on you", "can you"
- Emergencies or crises

HIGH (70-89):
- Important decisions being discussed
- Action items or deliverables mentioned
- Technical issues requiring attention
- Meeting requests or deadlines

MEDIUM (50-69):
- Project updates or status reports
- Informational announcements
- Relevant team discussions
- Questions that aren't blocking

LOW (0-49):
- Casual chat, social conversations
- Off-topic discussions
- Jokes, emoji reactions, "thanks"
- Coffee/lunch/watercooler talk

MESSAGES:
%s

Return JSON:
{
  "priorities": [
    {"message_number": 1, "score": 95, "reason": "Production outage", "category": "needs_response"},
    {"message_number": 2, "score": 25, "reason": "Casual chat", "category": "low_priority"}
  ]
}

Return exactly %d priorities.
`, len(records), FormatMessages(records), len(records))
}
