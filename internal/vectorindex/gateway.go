package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrShapeMismatch reports a caller contract violation on Add. Not retryable.
	ErrShapeMismatch = errors.New("texts and metadatas must have the same length")

	// ErrUnavailable wraps transient embedding or index failures. The gateway
	// never retries; retry policy belongs to the caller.
	ErrUnavailable = errors.New("vector index unavailable")
)

// Metadata is the open key/value escape hatch stored alongside each record.
// Callers that index well-known record kinds should build it through a typed
// constructor rather than assembling maps by hand.
type Metadata map[string]any

// Result is a single retrieval hit, ordered most-similar first by the gateway.
type Result struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Embedder turns text into vectors. Batched where the backing API allows it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Gateway fronts the embedding function and the pgvector-backed
// nearest-neighbor store. Records are append-only: nothing mutates or deletes
// a row after insertion. The sql.DB pool establishes connections lazily on
// first use and serializes concurrent writes on the server side, so the
// gateway itself holds no locks.
type Gateway struct {
	db       *sql.DB
	embedder Embedder
}

func NewGateway(db *sql.DB, embedder Embedder) *Gateway {
	return &Gateway{db: db, embedder: embedder}
}

// InitSchema creates the indexed_records table and its indexes.
func (g *Gateway) InitSchema() error {
	slog.Info("Initializing vector index schema...")

	if _, err := g.db.Exec("CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := `
		CREATE TABLE IF NOT EXISTS indexed_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			embedding VECTOR(1536) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := g.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create indexed_records table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_indexed_records_metadata ON indexed_records USING gin (metadata);",
		"CREATE INDEX IF NOT EXISTS idx_indexed_records_embedding ON indexed_records USING ivfflat (embedding vector_cosine_ops);",
	}
	for _, indexSQL := range indexes {
		if _, err := g.db.Exec(indexSQL); err != nil {
			// The ivfflat index cannot be built on an empty table on some
			// pgvector versions. Searches still work without it.
			slog.Warn("Failed to create index", "error", err, "sql", indexSQL)
		}
	}

	slog.Info("Vector index schema initialized")
	return nil
}

// Add embeds each text and durably stores one record per text. texts and
// metadatas must be the same length.
func (g *Gateway) Add(ctx context.Context, texts []string, metadatas []Metadata) error {
	if len(texts) != len(metadatas) {
		return fmt.Errorf("%w: %d texts, %d metadatas", ErrShapeMismatch, len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return nil
	}

	embeddings, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed batch: %v", ErrUnavailable, err)
	}

	query := `
		INSERT INTO indexed_records (content, embedding, metadata)
		VALUES ($1, $2, $3)
	`

	for i, text := range texts {
		metadataJSON, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if _, err := g.db.ExecContext(ctx, query, text, pgvector.NewVector(embeddings[i]), metadataJSON); err != nil {
			return fmt.Errorf("%w: store record %d: %v", ErrUnavailable, i, err)
		}
	}

	return nil
}

// Search returns up to k records ordered by ascending cosine distance to the
// query. An empty index yields an empty result set, not an error.
func (g *Gateway) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	queryEmbedding, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}

	searchSQL := `
		SELECT content, metadata
		FROM indexed_records
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := g.db.QueryContext(ctx, searchSQL, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var content string
		var metadataJSON []byte
		if err := rows.Scan(&content, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		metadata := Metadata{}
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		results = append(results, Result{Content: content, Metadata: metadata})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", ErrUnavailable, err)
	}

	return results, nil
}

// Count reports the number of indexed records, for the readiness endpoint and
// the indexed-records gauge.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	var n int
	if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexed_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count records: %v", ErrUnavailable, err)
	}
	return n, nil
}
