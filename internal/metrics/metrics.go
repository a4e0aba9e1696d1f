package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wingman_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RAG metrics
	QuestionsAnswered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_questions_answered_total",
			Help: "Total number of questions answered, by confidence",
		},
		[]string{"confidence"},
	)

	QuestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wingman_question_duration_seconds",
			Help:    "End-to-end duration of answering a question",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Indexing metrics
	ChunksIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_chunks_indexed_total",
			Help: "Total number of chunks added to the vector index, by source",
		},
		[]string{"source"},
	)

	EmbeddingGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_embedding_generations_total",
			Help: "Total number of embedding API calls",
		},
		[]string{"status"},
	)

	EmbeddingGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wingman_embedding_generation_duration_seconds",
			Help:    "Duration of embedding API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Generation metrics
	CompletionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_completion_calls_total",
			Help: "Total number of LLM completion calls",
		},
		[]string{"status"},
	)

	CompletionCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wingman_completion_call_duration_seconds",
			Help:    "Duration of LLM completion calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Conversation memory metrics
	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_memory_operations_total",
			Help: "Total number of conversation memory operations",
		},
		[]string{"operation", "status"},
	)

	// Slack metrics
	SlackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_slack_events_total",
			Help: "Total number of Slack events received",
		},
		[]string{"type", "status"},
	)

	SlackFilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_slack_files_processed_total",
			Help: "Total number of Slack file uploads processed",
		},
		[]string{"filetype", "status"},
	)

	// Storage metrics
	DocumentsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingman_documents_stored_total",
			Help: "Total number of documents stored",
		},
		[]string{"source", "status"},
	)

	IndexedRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wingman_indexed_records",
			Help: "Number of records in the vector index",
		},
	)
)
