// Package message defines the chat message records Sift prioritizes.
package message

import (
	"strings"
	"time"
)

// Record is one ingested chat message. Records are produced by an external
// ingestion collaborator and are never mutated by the engine; scoring
// produces derived output alongside them.
type Record struct {
	MessageID      string    `json:"message_id"`
	ChannelID      string    `json:"channel_id"`
	ChannelName    string    `json:"channel_name"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	ThreadTS       string    `json:"thread_ts,omitempty"`
	IsThreadParent bool      `json:"is_thread_parent,omitempty"`
	ReplyCount     int       `json:"reply_count,omitempty"`
	MentionedUsers []string  `json:"mentioned_users,omitempty"`
	HasFiles       bool      `json:"has_files,omitempty"`
	ReactionCount  int       `json:"reaction_count,omitempty"`
}

// Mentions reports whether the record's text contains a literal mention
// token for the given user ID. An empty user ID never matches.
func (r *Record) Mentions(userID string) bool {
	if userID == "" {
		return false
	}
	return strings.Contains(r.Text, "<@"+userID+">")
}

// Batch is the ingest payload accepted by the messages API.
type Batch struct {
	Messages []Record `json:"messages"`
}
