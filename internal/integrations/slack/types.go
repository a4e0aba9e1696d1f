package slack

import (
	"time"

	"github.com/google/uuid"
)

// StoredMessage is a raw Slack message kept in the relational log. The log
// exists so threads can be re-indexed later without another round trip to
// the Slack API.
type StoredMessage struct {
	ID        uuid.UUID `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	MessageTS string    `json:"message_ts"`
	ThreadTS  string    `json:"thread_ts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
