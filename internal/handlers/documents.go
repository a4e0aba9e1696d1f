package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"wingman/internal/metrics"
	"wingman/internal/storage"
)

const (
	defaultDocumentSource = "api"
	defaultListLimit      = 50
	maxListLimit          = 200
)

type DocumentsHandler struct {
	store    storage.DocumentStore
	pipeline Pipeline
}

type StoreDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

func NewDocumentsHandler(store storage.DocumentStore, pipeline Pipeline) *DocumentsHandler {
	return &DocumentsHandler{store: store, pipeline: pipeline}
}

// HandleStore records a document and indexes its chunks. The document row is
// written first so a failed indexing run can be replayed from it.
func (h *DocumentsHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	var req StoreDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode document request", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Content == "" {
		http.Error(w, "Title and content are required", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		req.Source = defaultDocumentSource
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	doc := &storage.Document{
		Title:   req.Title,
		Content: req.Content,
		Source:  req.Source,
	}
	if err := h.store.StoreDocument(ctx, doc); err != nil {
		metrics.DocumentsStored.WithLabelValues(req.Source, "error").Inc()
		slog.Error("Failed to store document", "error", err, "title", req.Title)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.pipeline.IndexDocument(ctx, req.Title, req.Content, req.Source); err != nil {
		metrics.DocumentsStored.WithLabelValues(req.Source, "error").Inc()
		slog.Error("Failed to index document", "error", err, "title", req.Title)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	metrics.DocumentsStored.WithLabelValues(req.Source, "success").Inc()
	doc.Content = ""
	writeJSON(w, http.StatusCreated, doc)
}

// HandleList returns the newest documents, content omitted.
func (h *DocumentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	documents, err := h.store.ListDocuments(ctx, limit)
	if err != nil {
		slog.Error("Failed to list documents", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if documents == nil {
		documents = []storage.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": documents})
}
