package slack

import "strings"

// Conversation ids partition the bot's short-lived memory. They are opaque to
// the pipeline; the shapes below just have to be stable within one logical
// conversation and distinct across unrelated ones.

// ThreadConversationID keys memory for a threaded mention.
func ThreadConversationID(channelID, threadTS string) string {
	return "thread:" + channelID + ":" + threadTS
}

// DMConversationID keys memory for a direct message exchange.
func DMConversationID(userID string) string {
	return "dm:" + userID
}

// MentionConversationID keys memory for a top-level channel mention.
func MentionConversationID(channelID, userID string) string {
	return channelID + ":" + userID
}

// CleanQuestion strips Slack markup that would otherwise leak into the
// prompt: user mentions like <@U123> and channel references like
// <#C123|general>.
func CleanQuestion(text string) string {
	text = stripAngleRefs(text, "<@")
	text = stripAngleRefs(text, "<#")
	return strings.TrimSpace(text)
}

func stripAngleRefs(text, open string) string {
	for {
		start := strings.Index(text, open)
		if start == -1 {
			return text
		}
		end := strings.Index(text[start:], ">")
		if end == -1 {
			return text
		}
		text = text[:start] + text[start+end+1:]
	}
}
