// Package slack connects the answer pipeline to the Slack Events API:
// mentions, direct messages, the slash command, and file uploads.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wingman/internal/metrics"
	"wingman/internal/rag"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const eventTimeout = 60 * time.Second

// Pipeline is the slice of the orchestrator the Slack handler drives.
type Pipeline interface {
	GenerateResponse(ctx context.Context, req rag.Request) (*rag.Response, error)
	IndexThread(ctx context.Context, messages []rag.ThreadMessage, channelID string) error
	IndexFile(ctx context.Context, filename, content, channelID string) error
}

// Handler serves the Slack Events API and slash command endpoints.
type Handler struct {
	client        *slack.Client
	signingSecret string
	pipeline      Pipeline
	log           *MessageLog
	botUserID     string
}

func NewHandler(botToken, signingSecret string, pipeline Pipeline, messageLog *MessageLog) *Handler {
	client := slack.New(botToken)

	// The bot's own messages come back through the events stream; knowing
	// our user id lets us drop them.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var botUserID string
	if authTest, err := client.AuthTestContext(ctx); err != nil {
		slog.Warn("Could not resolve bot user ID", "error", err)
	} else {
		botUserID = authTest.UserID
		slog.Info("Bot user ID resolved", "bot_user_id", botUserID)
	}

	return &Handler{
		client:        client,
		signingSecret: signingSecret,
		pipeline:      pipeline,
		log:           messageLog,
		botUserID:     botUserID,
	}
}

// HandleEvents is the Events API endpoint. Signature verification happens
// before anything is parsed; event processing runs in the background so
// Slack gets its 200 inside the delivery deadline.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := h.verifiedBody(r)
	if err != nil {
		slog.Error("Rejected Slack event", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.Error("Failed to parse Slack event", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return

	case slackevents.CallbackEvent:
		h.dispatchCallback(event.InnerEvent)
		w.WriteHeader(http.StatusOK)
		return
	}

	slog.Warn("Unhandled Slack event type", "type", event.Type)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) dispatchCallback(inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		metrics.SlackEvents.WithLabelValues("app_mention", "received").Inc()
		go h.handleMention(ev)

	case *slackevents.MessageEvent:
		// Only direct messages; channel chatter reaches us via mentions.
		if ev.ChannelType == "im" && ev.BotID == "" && ev.SubType == "" && ev.User != h.botUserID {
			metrics.SlackEvents.WithLabelValues("message_im", "received").Inc()
			go h.handleDirectMessage(ev)
		}

	case *slackevents.FileSharedEvent:
		metrics.SlackEvents.WithLabelValues("file_shared", "received").Inc()
		go h.handleFileShared(ev)

	case *slackevents.ReactionAddedEvent:
		// Observed for visibility only; reactions never feed back into
		// retrieval or ranking.
		metrics.SlackEvents.WithLabelValues("reaction_added", "received").Inc()
		slog.Debug("Reaction observed", "reaction", ev.Reaction, "user", ev.User)

	default:
		metrics.SlackEvents.WithLabelValues("unknown", "ignored").Inc()
	}
}

// HandleCommand serves the /wingman slash command.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := h.verifiedBody(r)
	if err != nil {
		slog.Error("Rejected slash command", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		slog.Error("Failed to parse slash command", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	metrics.SlackEvents.WithLabelValues("slash_command", "received").Inc()

	question := CleanQuestion(cmd.Text)
	if question == "" {
		respondEphemeral(w, "How can I help you? Please provide a question.")
		return
	}

	// Slash commands must be acknowledged within seconds; the answer is
	// posted to the channel once generation finishes.
	go h.answerCommand(cmd, question)
	respondEphemeral(w, "On it, give me a moment...")
}

func (h *Handler) answerCommand(cmd slack.SlashCommand, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	resp, err := h.pipeline.GenerateResponse(ctx, rag.Request{Question: question})
	if err != nil {
		slog.Error("Failed to answer slash command", "error", err, "channel", cmd.ChannelID)
		h.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Sorry, I couldn't come up with an answer. Please try again.")
		return
	}

	h.postMessage(ctx, cmd.ChannelID, "", resp.Answer)
}

func (h *Handler) handleMention(ev *slackevents.AppMentionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if ev.User == "" || ev.User == h.botUserID {
		return
	}

	question := CleanQuestion(ev.Text)
	replyTS := ev.ThreadTimeStamp
	if replyTS == "" {
		replyTS = ev.TimeStamp
	}

	if question == "" {
		h.postMessage(ctx, ev.Channel, replyTS, "How can I help you? Please ask a question.")
		return
	}

	h.logMessage(ctx, StoredMessage{
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Text:      ev.Text,
		MessageTS: ev.TimeStamp,
		ThreadTS:  ev.ThreadTimeStamp,
	})

	conversationID := MentionConversationID(ev.Channel, ev.User)
	if ev.ThreadTimeStamp != "" {
		conversationID = ThreadConversationID(ev.Channel, ev.ThreadTimeStamp)
		h.indexThreadContext(ctx, ev.Channel, ev.ThreadTimeStamp)
	}

	resp, err := h.pipeline.GenerateResponse(ctx, rag.Request{
		Question:       question,
		ChannelID:      ev.Channel,
		ConversationID: conversationID,
		UserID:         ev.User,
		MessageTS:      ev.TimeStamp,
	})
	if err != nil {
		metrics.SlackEvents.WithLabelValues("app_mention", "error").Inc()
		slog.Error("Failed to answer mention", "error", err, "channel", ev.Channel)
		h.postMessage(ctx, ev.Channel, replyTS, "Sorry, I couldn't come up with an answer. Please try again.")
		return
	}

	metrics.SlackEvents.WithLabelValues("app_mention", "answered").Inc()
	h.postMessage(ctx, ev.Channel, replyTS, resp.Answer)
}

func (h *Handler) handleDirectMessage(ev *slackevents.MessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	question := CleanQuestion(ev.Text)
	if question == "" {
		return
	}

	h.logMessage(ctx, StoredMessage{
		ChannelID: ev.Channel,
		UserID:    ev.User,
		Text:      ev.Text,
		MessageTS: ev.TimeStamp,
		ThreadTS:  ev.ThreadTimeStamp,
	})

	resp, err := h.pipeline.GenerateResponse(ctx, rag.Request{
		Question:       question,
		ChannelID:      ev.Channel,
		ConversationID: DMConversationID(ev.User),
		UserID:         ev.User,
		MessageTS:      ev.TimeStamp,
	})
	if err != nil {
		metrics.SlackEvents.WithLabelValues("message_im", "error").Inc()
		slog.Error("Failed to answer direct message", "error", err, "user", ev.User)
		h.postMessage(ctx, ev.Channel, "", "Sorry, I couldn't come up with an answer. Please try again.")
		return
	}

	metrics.SlackEvents.WithLabelValues("message_im", "answered").Inc()
	h.postMessage(ctx, ev.Channel, "", resp.Answer)
}

func (h *Handler) handleFileShared(ev *slackevents.FileSharedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	info, _, _, err := h.client.GetFileInfoContext(ctx, ev.FileID, 0, 0)
	if err != nil {
		metrics.SlackFilesProcessed.WithLabelValues("unknown", "error").Inc()
		slog.Error("Failed to fetch file info", "error", err, "file_id", ev.FileID)
		return
	}

	var buf bytes.Buffer
	if err := h.client.GetFileContext(ctx, info.URLPrivateDownload, &buf); err != nil {
		metrics.SlackFilesProcessed.WithLabelValues(info.Filetype, "error").Inc()
		slog.Error("Failed to download file", "error", err, "file_id", ev.FileID)
		return
	}

	text := ExtractFileContent(buf.Bytes(), info.Filetype, info.Mimetype)
	if text == "" {
		metrics.SlackFilesProcessed.WithLabelValues(info.Filetype, "skipped").Inc()
		slog.Info("No indexable text in file", "file", info.Name, "filetype", info.Filetype)
		return
	}

	if err := h.pipeline.IndexFile(ctx, info.Name, text, ev.ChannelID); err != nil {
		metrics.SlackFilesProcessed.WithLabelValues(info.Filetype, "error").Inc()
		slog.Error("Failed to index file", "error", err, "file", info.Name)
		h.postEphemeral(ctx, ev.ChannelID, ev.UserID, "Sorry, I couldn't index that file.")
		return
	}

	metrics.SlackFilesProcessed.WithLabelValues(info.Filetype, "indexed").Inc()
	h.postEphemeral(ctx, ev.ChannelID, ev.UserID, "Added "+info.Name+" to the knowledge base.")
}

// indexThreadContext pulls the surrounding thread from Slack and indexes it,
// so the answer can draw on what was already said. Failures only cost
// context, never the answer.
func (h *Handler) indexThreadContext(ctx context.Context, channelID, threadTS string) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     100,
		Inclusive: true,
	}

	msgs, _, _, err := h.client.GetConversationRepliesContext(ctx, params)
	if err != nil {
		slog.Warn("Failed to fetch thread replies", "error", err, "channel", channelID, "thread_ts", threadTS)
		return
	}

	var messages []rag.ThreadMessage
	for _, msg := range msgs {
		if msg.SubType == "bot_message" || (h.botUserID != "" && msg.User == h.botUserID) {
			continue
		}
		text := CleanQuestion(msg.Text)
		if text == "" {
			continue
		}
		messages = append(messages, rag.ThreadMessage{
			Text:     text,
			TS:       msg.Timestamp,
			UserID:   msg.User,
			ThreadTS: threadTS,
		})
	}

	if err := h.pipeline.IndexThread(ctx, messages, channelID); err != nil {
		slog.Warn("Failed to index thread context", "error", err, "channel", channelID, "thread_ts", threadTS)
	}
}

// verifiedBody reads the request body and checks its Slack signature.
func (h *Handler) verifiedBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		return nil, err
	}
	if _, err := verifier.Write(body); err != nil {
		return nil, err
	}
	if err := verifier.Ensure(); err != nil {
		return nil, err
	}

	return body, nil
}

func (h *Handler) logMessage(ctx context.Context, msg StoredMessage) {
	if err := h.log.StoreMessage(ctx, msg); err != nil {
		slog.Warn("Failed to log slack message", "error", err, "channel", msg.ChannelID, "ts", msg.MessageTS)
	}
}

func (h *Handler) postMessage(ctx context.Context, channelID, threadTS, text string) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := h.client.PostMessageContext(ctx, channelID, opts...); err != nil {
		slog.Error("Failed to post message", "error", err, "channel", channelID)
	}
}

func (h *Handler) postEphemeral(ctx context.Context, channelID, userID, text string) {
	_, err := h.client.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Error("Failed to post ephemeral message", "error", err, "channel", channelID)
	}
}

func respondEphemeral(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}
