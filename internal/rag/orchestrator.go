// Package rag coordinates the retrieval-augmented answer pipeline: memory
// read, similarity search, scope filtering, prompt assembly and generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wingman/internal/chunker"
	"wingman/internal/memory"
	"wingman/internal/metrics"
	"wingman/internal/prompt"
	"wingman/internal/retrieval"
	"wingman/internal/vectorindex"
)

const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// VectorIndex is the slice of the gateway the orchestrator needs.
type VectorIndex interface {
	Add(ctx context.Context, texts []string, metadatas []vectorindex.Metadata) error
	Search(ctx context.Context, query string, k int) ([]vectorindex.Result, error)
}

// MemoryStore is the slice of the conversation store the orchestrator needs.
type MemoryStore interface {
	Append(ctx context.Context, turn memory.Turn) error
	Read(ctx context.Context, conversationID string, window time.Duration, maxTurns int) ([]memory.Turn, error)
}

// Generator is the opaque prompt-in/text-out completion call.
type Generator interface {
	Generate(ctx context.Context, promptText string, temperature float32, maxTokens int) (string, error)
}

// Options carries the externally configured pipeline constants. Nothing here
// is computed internally.
type Options struct {
	ChunkSize           int
	ChunkOverlap        int
	RetrievalTopK       int
	Temperature         float32
	MaxTokens           int
	MemoryWindowTurns   int
	ConversationTimeout time.Duration
}

// Orchestrator owns one instance of each pipeline component, constructed at
// process start and shared by every call. Calls themselves are stateless.
type Orchestrator struct {
	index     VectorIndex
	memory    MemoryStore
	generator Generator
	opts      Options
}

func NewOrchestrator(index VectorIndex, memoryStore MemoryStore, generator Generator, opts Options) *Orchestrator {
	return &Orchestrator{
		index:     index,
		memory:    memoryStore,
		generator: generator,
		opts:      opts,
	}
}

// Request identifies a question and, optionally, the conversation it belongs
// to. ConversationID is an opaque caller-chosen key; turn tracking happens
// only when ConversationID, UserID and ChannelID are all present.
type Request struct {
	Question       string
	ChannelID      string
	ConversationID string
	UserID         string
	MessageTS      string
}

// Response is the structured answer. Confidence is presence-based: "high"
// iff any in-scope context survived filtering, never a calibrated score.
type Response struct {
	Answer     string                 `json:"answer"`
	Sources    []vectorindex.Metadata `json:"sources"`
	Confidence string                 `json:"confidence"`
}

// ThreadMessage is one chat message handed to IndexThread.
type ThreadMessage struct {
	Text     string
	TS       string
	UserID   string
	ThreadTS string
}

func (r Request) tracksTurns() bool {
	return r.ConversationID != "" && r.UserID != "" && r.ChannelID != ""
}

// GenerateResponse answers a question with retrieved context and, when a
// conversation is identified, recent history. Retrieval and generation
// failures are hard errors; conversation memory is best-effort and degrades
// to answering without history.
func (o *Orchestrator) GenerateResponse(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.QuestionDuration.Observe(time.Since(start).Seconds())
	}()

	history := o.readHistory(ctx, req.ConversationID)

	// The user's turn is recorded before generation so a failed completion
	// still leaves the question in the conversation record.
	if req.tracksTurns() {
		o.appendTurn(ctx, memory.Turn{
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			ChannelID:      req.ChannelID,
			Role:           memory.RoleUser,
			Message:        req.Question,
			MessageTS:      req.MessageTS,
		})
	}

	results, err := o.index.Search(ctx, req.Question, o.opts.RetrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("search context: %w", err)
	}

	if req.ChannelID != "" {
		results = retrieval.Filter(results, retrieval.Scope{"channel_id": req.ChannelID})
	}

	promptText := prompt.Assemble(history, prompt.BuildContext(results), req.Question)

	answer, err := o.generator.Generate(ctx, promptText, o.opts.Temperature, o.opts.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if req.tracksTurns() {
		o.appendTurn(ctx, memory.Turn{
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			ChannelID:      req.ChannelID,
			Role:           memory.RoleAssistant,
			Message:        answer,
		})
	}

	confidence := ConfidenceLow
	if len(results) > 0 {
		confidence = ConfidenceHigh
	}
	metrics.QuestionsAnswered.WithLabelValues(confidence).Inc()

	sources := make([]vectorindex.Metadata, len(results))
	for i, result := range results {
		sources[i] = result.Metadata
	}

	return &Response{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
	}, nil
}

// IndexDocument chunks free-form text and stores each chunk with document
// metadata. Indexing the same content twice creates duplicate records; there
// is deliberately no dedup here.
func (o *Orchestrator) IndexDocument(ctx context.Context, title, content, source string) error {
	chunks, err := chunker.Split(content, o.opts.ChunkSize, o.opts.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("chunk document %q: %w", title, err)
	}
	if len(chunks) == 0 {
		slog.Debug("Skipping empty document", "title", title)
		return nil
	}

	metadatas := make([]vectorindex.Metadata, len(chunks))
	for i := range chunks {
		metadatas[i] = DocumentChunkMeta{Source: source, Title: title, Chunk: i}.Metadata()
	}

	if err := o.index.Add(ctx, chunks, metadatas); err != nil {
		return fmt.Errorf("index document %q: %w", title, err)
	}

	metrics.ChunksIndexed.WithLabelValues(source).Add(float64(len(chunks)))
	slog.Info("Indexed document", "title", title, "source", source, "chunks", len(chunks))
	return nil
}

// IndexThread stores one record per chat message. Messages are short enough
// that chunking them would only split sentences, so none is applied.
func (o *Orchestrator) IndexThread(ctx context.Context, messages []ThreadMessage, channelID string) error {
	var texts []string
	var metadatas []vectorindex.Metadata
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		texts = append(texts, msg.Text)
		metadatas = append(metadatas, SlackMessageMeta{
			ChannelID: channelID,
			MessageTS: msg.TS,
			UserID:    msg.UserID,
			ThreadTS:  msg.ThreadTS,
		}.Metadata())
	}

	if len(texts) == 0 {
		return nil
	}

	if err := o.index.Add(ctx, texts, metadatas); err != nil {
		return fmt.Errorf("index thread in %s: %w", channelID, err)
	}

	metrics.ChunksIndexed.WithLabelValues(sourceSlack).Add(float64(len(texts)))
	slog.Info("Indexed thread", "channel_id", channelID, "messages", len(texts))
	return nil
}

// IndexFile indexes text extracted from an uploaded file, tagged with the
// channel it was shared in.
func (o *Orchestrator) IndexFile(ctx context.Context, filename, content, channelID string) error {
	return o.IndexDocument(ctx, filename, content, UploadSource(channelID))
}

// readHistory fetches and formats recent turns, degrading to no history on
// any failure.
func (o *Orchestrator) readHistory(ctx context.Context, conversationID string) string {
	if conversationID == "" {
		return ""
	}

	turns, err := o.memory.Read(ctx, conversationID, o.opts.ConversationTimeout, o.opts.MemoryWindowTurns)
	if err != nil {
		metrics.MemoryOperations.WithLabelValues("read", "error").Inc()
		slog.Warn("Conversation memory read failed, answering without history",
			"conversation_id", conversationID, "error", err)
		return ""
	}

	metrics.MemoryOperations.WithLabelValues("read", "success").Inc()
	return memory.FormatHistory(turns)
}

// appendTurn records a turn, logging and swallowing failures.
func (o *Orchestrator) appendTurn(ctx context.Context, turn memory.Turn) {
	if err := o.memory.Append(ctx, turn); err != nil {
		metrics.MemoryOperations.WithLabelValues("append", "error").Inc()
		slog.Warn("Conversation memory append failed",
			"conversation_id", turn.ConversationID, "role", turn.Role, "error", err)
		return
	}
	metrics.MemoryOperations.WithLabelValues("append", "success").Inc()
}
