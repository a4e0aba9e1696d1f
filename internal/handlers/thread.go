package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"wingman/internal/integrations/slack"
	"wingman/internal/rag"
)

// ThreadLog reads back messages the Slack handler has logged.
type ThreadLog interface {
	GetThread(ctx context.Context, channelID, threadTS string) ([]slack.StoredMessage, error)
}

type ThreadHandler struct {
	log      ThreadLog
	pipeline Pipeline
}

type IndexThreadRequest struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
}

func NewThreadHandler(log ThreadLog, pipeline Pipeline) *ThreadHandler {
	return &ThreadHandler{log: log, pipeline: pipeline}
}

// HandleIndexThread re-indexes a previously logged thread into the vector
// index, making its messages retrievable in that channel.
func (h *ThreadHandler) HandleIndexThread(w http.ResponseWriter, r *http.Request) {
	var req IndexThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode index thread request", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if req.ChannelID == "" || req.ThreadTS == "" {
		http.Error(w, "channel_id and thread_ts are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stored, err := h.log.GetThread(ctx, req.ChannelID, req.ThreadTS)
	if err != nil {
		slog.Error("Failed to load thread", "error", err, "channel_id", req.ChannelID, "thread_ts", req.ThreadTS)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if len(stored) == 0 {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	messages := make([]rag.ThreadMessage, 0, len(stored))
	for _, msg := range stored {
		messages = append(messages, rag.ThreadMessage{
			Text:     msg.Text,
			TS:       msg.MessageTS,
			UserID:   msg.UserID,
			ThreadTS: req.ThreadTS,
		})
	}

	if err := h.pipeline.IndexThread(ctx, messages, req.ChannelID); err != nil {
		slog.Error("Failed to index thread", "error", err, "channel_id", req.ChannelID, "thread_ts", req.ThreadTS)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel_id": req.ChannelID,
		"thread_ts":  req.ThreadTS,
		"indexed":    len(messages),
	})
}
