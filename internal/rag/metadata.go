package rag

const sourceSlack = "slack"

// UploadSource tags records indexed from a file shared in a channel.
func UploadSource(channelID string) string {
	return "slack_upload:" + channelID
}

// DocumentChunkMeta describes one chunk of an indexed document. Chunk is the
// ordinal of the chunk within its source, kept so a document's pieces can be
// traced back during debugging.
type DocumentChunkMeta struct {
	Source string
	Title  string
	Chunk  int
}

func (m DocumentChunkMeta) Metadata() map[string]any {
	return map[string]any{
		"source": m.Source,
		"title":  m.Title,
		"chunk":  m.Chunk,
	}
}

// SlackMessageMeta describes one indexed Slack message.
type SlackMessageMeta struct {
	ChannelID string
	MessageTS string
	UserID    string
	ThreadTS  string
}

func (m SlackMessageMeta) Metadata() map[string]any {
	return map[string]any{
		"source":     sourceSlack,
		"channel_id": m.ChannelID,
		"message_ts": m.MessageTS,
		"user_id":    m.UserID,
		"thread_ts":  m.ThreadTS,
	}
}
