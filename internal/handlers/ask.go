// Package handlers exposes the pipeline over HTTP: asking questions,
// submitting documents and re-indexing logged Slack threads.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"wingman/internal/rag"
)

const requestTimeout = 30 * time.Second

// Pipeline is the slice of the orchestrator the API handlers drive.
type Pipeline interface {
	GenerateResponse(ctx context.Context, req rag.Request) (*rag.Response, error)
	IndexDocument(ctx context.Context, title, content, source string) error
	IndexThread(ctx context.Context, messages []rag.ThreadMessage, channelID string) error
}

type AskHandler struct {
	pipeline Pipeline
}

type AskRequest struct {
	Question  string `json:"question"`
	ChannelID string `json:"channel_id,omitempty"`
}

func NewAskHandler(pipeline Pipeline) *AskHandler {
	return &AskHandler{pipeline: pipeline}
}

// HandleAsk answers a question over plain HTTP. API calls carry no
// conversation identity, so answers here never read or write memory.
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode ask request", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if req.Question == "" {
		http.Error(w, "Question cannot be empty", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.pipeline.GenerateResponse(ctx, rag.Request{
		Question:  req.Question,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		slog.Error("Failed to answer question", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
