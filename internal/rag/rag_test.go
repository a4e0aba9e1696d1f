package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wingman/internal/memory"
	"wingman/internal/vectorindex"
)

type fakeIndex struct {
	addedTexts []string
	addedMetas []vectorindex.Metadata
	results    []vectorindex.Result
	searchErr  error
	addErr     error
	lastK      int
}

func (f *fakeIndex) Add(ctx context.Context, texts []string, metadatas []vectorindex.Metadata) error {
	if f.addErr != nil {
		return f.addErr
	}
	if len(texts) != len(metadatas) {
		return vectorindex.ErrShapeMismatch
	}
	f.addedTexts = append(f.addedTexts, texts...)
	f.addedMetas = append(f.addedMetas, metadatas...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, k int) ([]vectorindex.Result, error) {
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeMemory struct {
	turns     []memory.Turn
	readErr   error
	appendErr error
}

func (f *fakeMemory) Append(ctx context.Context, turn memory.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	turn.CreatedAt = time.Now()
	f.turns = append(f.turns, turn)
	return nil
}

func (f *fakeMemory) Read(ctx context.Context, conversationID string, window time.Duration, maxTurns int) ([]memory.Turn, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var matched []memory.Turn
	cutoff := time.Now().Add(-window)
	for _, turn := range f.turns {
		if turn.ConversationID == conversationID && !turn.CreatedAt.Before(cutoff) {
			matched = append(matched, turn)
		}
	}
	if len(matched) > maxTurns {
		matched = matched[len(matched)-maxTurns:]
	}
	return matched, nil
}

type fakeGenerator struct {
	prompts []string
	answer  string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, promptText string, temperature float32, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, promptText)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func testOptions() Options {
	return Options{
		ChunkSize:           1000,
		ChunkOverlap:        200,
		RetrievalTopK:       5,
		Temperature:         0.7,
		MaxTokens:           2000,
		MemoryWindowTurns:   10,
		ConversationTimeout: 30 * time.Minute,
	}
}

func newTestOrchestrator(index *fakeIndex, mem *fakeMemory, gen *fakeGenerator) *Orchestrator {
	return NewOrchestrator(index, mem, gen, testOptions())
}

func TestGenerateResponse_ConfidenceHigh(t *testing.T) {
	index := &fakeIndex{results: []vectorindex.Result{
		{Content: "deploy with make deploy", Metadata: vectorindex.Metadata{"source": "docs"}},
	}}
	gen := &fakeGenerator{answer: "Run make deploy."}
	o := newTestOrchestrator(index, &fakeMemory{}, gen)

	resp, err := o.GenerateResponse(context.Background(), Request{Question: "how do I deploy?"})
	if err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	if resp.Confidence != ConfidenceHigh {
		t.Errorf("expected confidence %q, got %q", ConfidenceHigh, resp.Confidence)
	}
	if resp.Answer != "Run make deploy." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(resp.Sources))
	}
	if index.lastK != 5 {
		t.Errorf("expected top-k 5, got %d", index.lastK)
	}
}

func TestGenerateResponse_ConfidenceLowOnEmptyResults(t *testing.T) {
	o := newTestOrchestrator(&fakeIndex{}, &fakeMemory{}, &fakeGenerator{answer: "I don't know."})

	resp, err := o.GenerateResponse(context.Background(), Request{Question: "anything?"})
	if err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	if resp.Confidence != ConfidenceLow {
		t.Errorf("expected confidence %q, got %q", ConfidenceLow, resp.Confidence)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(resp.Sources))
	}
}

func TestGenerateResponse_ChannelFilterDropsOtherChannels(t *testing.T) {
	index := &fakeIndex{results: []vectorindex.Result{
		{Content: "closer but wrong channel", Metadata: vectorindex.Metadata{"source": "slack", "channel_id": "C999"}},
		{Content: "right channel", Metadata: vectorindex.Metadata{"source": "slack", "channel_id": "C123"}},
		{Content: "doc chunk without channel", Metadata: vectorindex.Metadata{"source": "docs"}},
	}}
	gen := &fakeGenerator{answer: "answer"}
	o := newTestOrchestrator(index, &fakeMemory{}, gen)

	resp, err := o.GenerateResponse(context.Background(), Request{Question: "q", ChannelID: "C123"})
	if err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	if len(resp.Sources) != 1 {
		t.Fatalf("expected 1 in-scope source, got %d", len(resp.Sources))
	}
	if resp.Sources[0]["channel_id"] != "C123" {
		t.Errorf("unexpected source %v", resp.Sources[0])
	}

	promptText := gen.prompts[0]
	if strings.Contains(promptText, "closer but wrong channel") {
		t.Errorf("out-of-scope content leaked into the prompt")
	}
	if !strings.Contains(promptText, "right channel") {
		t.Errorf("in-scope content missing from the prompt")
	}
}

func TestGenerateResponse_ConfidenceLowWhenFilterEmptiesResults(t *testing.T) {
	// Retrieval returned matches, but none in the requested channel.
	index := &fakeIndex{results: []vectorindex.Result{
		{Content: "other channel", Metadata: vectorindex.Metadata{"channel_id": "C999"}},
	}}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{answer: "answer"})

	resp, err := o.GenerateResponse(context.Background(), Request{Question: "q", ChannelID: "C123"})
	if err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	if resp.Confidence != ConfidenceLow {
		t.Errorf("expected confidence %q after filtering, got %q", ConfidenceLow, resp.Confidence)
	}
}

func TestGenerateResponse_TracksBothTurns(t *testing.T) {
	mem := &fakeMemory{}
	o := newTestOrchestrator(&fakeIndex{}, mem, &fakeGenerator{answer: "the answer"})

	req := Request{
		Question:       "what is RAG?",
		ChannelID:      "C123",
		ConversationID: "C123:U1",
		UserID:         "U1",
		MessageTS:      "1234567890.123456",
	}
	if _, err := o.GenerateResponse(context.Background(), req); err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	if len(mem.turns) != 2 {
		t.Fatalf("expected 2 turns recorded, got %d", len(mem.turns))
	}

	user := mem.turns[0]
	if user.Role != memory.RoleUser || user.Message != "what is RAG?" || user.MessageTS != "1234567890.123456" {
		t.Errorf("unexpected user turn %+v", user)
	}
	if user.ConversationID != "C123:U1" {
		t.Errorf("unexpected conversation id %q", user.ConversationID)
	}

	assistant := mem.turns[1]
	if assistant.Role != memory.RoleAssistant || assistant.Message != "the answer" {
		t.Errorf("unexpected assistant turn %+v", assistant)
	}
	if assistant.MessageTS != "" {
		t.Errorf("assistant turns carry no message timestamp, got %q", assistant.MessageTS)
	}
}

func TestGenerateResponse_NoTurnTrackingWithoutFullIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no identifiers", req: Request{Question: "q"}},
		{name: "conversation only", req: Request{Question: "q", ConversationID: "dm:U1"}},
		{name: "missing channel", req: Request{Question: "q", ConversationID: "dm:U1", UserID: "U1"}},
		{name: "missing user", req: Request{Question: "q", ConversationID: "dm:U1", ChannelID: "D1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &fakeMemory{}
			o := newTestOrchestrator(&fakeIndex{}, mem, &fakeGenerator{answer: "a"})

			if _, err := o.GenerateResponse(context.Background(), tt.req); err != nil {
				t.Fatalf("GenerateResponse() returned error: %v", err)
			}
			if len(mem.turns) != 0 {
				t.Errorf("expected no recorded turns, got %d", len(mem.turns))
			}
		})
	}
}

func TestGenerateResponse_HistoryInPrompt(t *testing.T) {
	mem := &fakeMemory{turns: []memory.Turn{
		{ConversationID: "dm:U1", Role: memory.RoleUser, Message: "Hello", CreatedAt: time.Now()},
		{ConversationID: "dm:U1", Role: memory.RoleAssistant, Message: "Hi there!", CreatedAt: time.Now()},
		{ConversationID: "dm:U2", Role: memory.RoleUser, Message: "other conversation", CreatedAt: time.Now()},
	}}
	gen := &fakeGenerator{answer: "a"}
	o := newTestOrchestrator(&fakeIndex{}, mem, gen)

	req := Request{Question: "and now?", ConversationID: "dm:U1"}
	if _, err := o.GenerateResponse(context.Background(), req); err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	promptText := gen.prompts[0]
	if !strings.Contains(promptText, "Previous conversation:\nUser: Hello\nAssistant: Hi there!") {
		t.Errorf("history missing from prompt:\n%s", promptText)
	}
	if strings.Contains(promptText, "other conversation") {
		t.Errorf("turns from an unrelated conversation leaked into the prompt")
	}
}

func TestGenerateResponse_StaleTurnsExcluded(t *testing.T) {
	mem := &fakeMemory{turns: []memory.Turn{
		{ConversationID: "dm:U1", Role: memory.RoleUser, Message: "Old message", CreatedAt: time.Now().Add(-40 * time.Minute)},
		{ConversationID: "dm:U1", Role: memory.RoleUser, Message: "Recent message", CreatedAt: time.Now().Add(-5 * time.Minute)},
	}}
	gen := &fakeGenerator{answer: "a"}
	o := newTestOrchestrator(&fakeIndex{}, mem, gen)

	req := Request{Question: "q", ConversationID: "dm:U1"}
	if _, err := o.GenerateResponse(context.Background(), req); err != nil {
		t.Fatalf("GenerateResponse() returned error: %v", err)
	}

	promptText := gen.prompts[0]
	if strings.Contains(promptText, "Old message") {
		t.Errorf("turn outside the 30-minute window leaked into the prompt")
	}
	if !strings.Contains(promptText, "Recent message") {
		t.Errorf("recent turn missing from the prompt")
	}
}

func TestGenerateResponse_MemoryFailuresAreSoft(t *testing.T) {
	mem := &fakeMemory{readErr: memory.ErrUnavailable, appendErr: memory.ErrUnavailable}
	gen := &fakeGenerator{answer: "still answered"}
	o := newTestOrchestrator(&fakeIndex{}, mem, gen)

	req := Request{
		Question:       "q",
		ChannelID:      "C1",
		ConversationID: "C1:U1",
		UserID:         "U1",
	}
	resp, err := o.GenerateResponse(context.Background(), req)
	if err != nil {
		t.Fatalf("memory failure must not fail the call, got %v", err)
	}
	if resp.Answer != "still answered" {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if strings.Contains(gen.prompts[0], "Previous conversation:") {
		t.Errorf("prompt must omit history when memory is unavailable")
	}
}

func TestGenerateResponse_SearchFailureIsHard(t *testing.T) {
	index := &fakeIndex{searchErr: vectorindex.ErrUnavailable}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{answer: "a"})

	_, err := o.GenerateResponse(context.Background(), Request{Question: "q"})
	if !errors.Is(err, vectorindex.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestGenerateResponse_GenerationFailureIsHard(t *testing.T) {
	genErr := errors.New("completion exploded")
	mem := &fakeMemory{}
	o := newTestOrchestrator(&fakeIndex{}, mem, &fakeGenerator{err: genErr})

	req := Request{
		Question:       "q",
		ChannelID:      "C1",
		ConversationID: "C1:U1",
		UserID:         "U1",
	}
	_, err := o.GenerateResponse(context.Background(), req)
	if !errors.Is(err, genErr) {
		t.Errorf("expected generation error, got %v", err)
	}

	// The user's turn was recorded before the failed generation; no
	// assistant turn follows.
	if len(mem.turns) != 1 || mem.turns[0].Role != memory.RoleUser {
		t.Errorf("expected only the user turn recorded, got %+v", mem.turns)
	}
}

func TestIndexDocument_ChunkMetadata(t *testing.T) {
	index := &fakeIndex{}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{})

	content := strings.Repeat("x", 2500)
	if err := o.IndexDocument(context.Background(), "T", content, "docs"); err != nil {
		t.Fatalf("IndexDocument() returned error: %v", err)
	}

	if len(index.addedTexts) != 4 {
		t.Fatalf("expected 4 chunks for 2500 chars at size=1000 overlap=200, got %d", len(index.addedTexts))
	}

	expectedLens := []int{1000, 1000, 900, 100}
	for i, meta := range index.addedMetas {
		if meta["source"] != "docs" {
			t.Errorf("chunk %d: expected source docs, got %v", i, meta["source"])
		}
		if meta["title"] != "T" {
			t.Errorf("chunk %d: expected title T, got %v", i, meta["title"])
		}
		if meta["chunk"] != i {
			t.Errorf("chunk %d: expected ordinal %d, got %v", i, i, meta["chunk"])
		}
		if len(index.addedTexts[i]) != expectedLens[i] {
			t.Errorf("chunk %d: expected length %d, got %d", i, expectedLens[i], len(index.addedTexts[i]))
		}
	}
}

func TestIndexDocument_EmptyContent(t *testing.T) {
	index := &fakeIndex{}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{})

	if err := o.IndexDocument(context.Background(), "empty", "", "docs"); err != nil {
		t.Fatalf("IndexDocument() returned error: %v", err)
	}
	if len(index.addedTexts) != 0 {
		t.Errorf("empty document must not create records")
	}
}

func TestIndexThread_OneRecordPerMessage(t *testing.T) {
	index := &fakeIndex{}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{})

	messages := []ThreadMessage{
		{Text: "how do we rotate keys?", TS: "1.1", UserID: "U1", ThreadTS: "1.1"},
		{Text: "", TS: "1.2", UserID: "U2", ThreadTS: "1.1"},
		{Text: "see the settings page", TS: "1.3", UserID: "U2", ThreadTS: "1.1"},
	}
	if err := o.IndexThread(context.Background(), messages, "C123"); err != nil {
		t.Fatalf("IndexThread() returned error: %v", err)
	}

	if len(index.addedTexts) != 2 {
		t.Fatalf("expected 2 records (empty message skipped), got %d", len(index.addedTexts))
	}

	first := index.addedMetas[0]
	if first["source"] != "slack" || first["channel_id"] != "C123" ||
		first["message_ts"] != "1.1" || first["user_id"] != "U1" || first["thread_ts"] != "1.1" {
		t.Errorf("unexpected message metadata %v", first)
	}
}

func TestIndexFile_UploadSourceTag(t *testing.T) {
	index := &fakeIndex{}
	o := newTestOrchestrator(index, &fakeMemory{}, &fakeGenerator{})

	if err := o.IndexFile(context.Background(), "runbook.md", "restart the worker", "C42"); err != nil {
		t.Fatalf("IndexFile() returned error: %v", err)
	}

	if len(index.addedMetas) != 1 {
		t.Fatalf("expected 1 record, got %d", len(index.addedMetas))
	}
	if index.addedMetas[0]["source"] != "slack_upload:C42" {
		t.Errorf("expected source slack_upload:C42, got %v", index.addedMetas[0]["source"])
	}
	if index.addedMetas[0]["title"] != "runbook.md" {
		t.Errorf("expected title runbook.md, got %v", index.addedMetas[0]["title"])
	}
}
