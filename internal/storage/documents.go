// Package storage keeps the relational record of what has been ingested. The
// vector index owns retrieval; these tables exist for listing and re-indexing.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Document is a knowledge-base document as submitted through the API.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentStore persists submitted documents.
type DocumentStore interface {
	StoreDocument(ctx context.Context, doc *Document) error
	ListDocuments(ctx context.Context, limit int) ([]Document, error)
}

// PostgresDocumentStore is the production DocumentStore.
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) InitSchema() error {
	slog.Info("Initializing documents schema...")

	createTable := `
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	indexSQL := "CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);"
	if _, err := s.db.Exec(indexSQL); err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}

	slog.Info("Documents schema initialized")
	return nil
}

// StoreDocument inserts a document, assigning its id and creation time.
func (s *PostgresDocumentStore) StoreDocument(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	query := `
		INSERT INTO documents (id, title, content, source)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, doc.ID, doc.Title, doc.Content, doc.Source).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	return nil
}

// ListDocuments returns the newest documents without their content bodies.
func (s *PostgresDocumentStore) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	query := `
		SELECT id, title, source, created_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Source, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	return documents, rows.Err()
}
