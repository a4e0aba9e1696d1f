package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// ErrUnavailable wraps storage failures. Conversation memory is best-effort:
// the orchestrator logs these and answers without history instead of failing.
var ErrUnavailable = errors.New("conversation memory unavailable")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one immutable conversation entry. Turns are never updated or
// deleted here; retention is an external concern.
type Turn struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ChannelID      string    `json:"channel_id"`
	Role           string    `json:"role"`
	Message        string    `json:"message"`
	MessageTS      string    `json:"message_ts,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store keeps the append-only conversation history in Postgres. Insert order
// within a conversation is preserved by the BIGSERIAL key and reads order by
// it, so no client-side per-conversation lock is needed even under
// concurrent appends.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the conversation_history table.
func (s *Store) InitSchema() error {
	slog.Info("Initializing conversation memory schema...")

	createTable := `
		CREATE TABLE IF NOT EXISTS conversation_history (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			role TEXT NOT NULL,
			message TEXT NOT NULL,
			message_ts TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create conversation_history table: %w", err)
	}

	indexSQL := "CREATE INDEX IF NOT EXISTS idx_conversation_history_conversation ON conversation_history(conversation_id, id);"
	if _, err := s.db.Exec(indexSQL); err != nil {
		return fmt.Errorf("failed to create conversation index: %w", err)
	}

	slog.Info("Conversation memory schema initialized")
	return nil
}

// Append stores a single turn.
func (s *Store) Append(ctx context.Context, turn Turn) error {
	query := `
		INSERT INTO conversation_history (conversation_id, user_id, channel_id, role, message, message_ts)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`

	_, err := s.db.ExecContext(ctx, query,
		turn.ConversationID, turn.UserID, turn.ChannelID, turn.Role, turn.Message, turn.MessageTS)
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", ErrUnavailable, err)
	}

	return nil
}

// Read returns the most recent maxTurns turns of the conversation created
// within the window, oldest first. A conversation with no matching turns
// yields an empty slice.
func (s *Store) Read(ctx context.Context, conversationID string, window time.Duration, maxTurns int) ([]Turn, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %v", window)
	}
	if maxTurns <= 0 {
		return nil, fmt.Errorf("maxTurns must be positive, got %d", maxTurns)
	}

	// Newest-first with LIMIT picks the most recent turns inside the window;
	// the slice is reversed afterwards to present them oldest first.
	query := `
		SELECT conversation_id, user_id, channel_id, role, message, COALESCE(message_ts, ''), created_at
		FROM conversation_history
		WHERE conversation_id = $1 AND created_at >= $2
		ORDER BY id DESC
		LIMIT $3
	`

	cutoff := time.Now().Add(-window)
	rows, err := s.db.QueryContext(ctx, query, conversationID, cutoff, maxTurns)
	if err != nil {
		return nil, fmt.Errorf("%w: read turns: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		err := rows.Scan(&turn.ConversationID, &turn.UserID, &turn.ChannelID,
			&turn.Role, &turn.Message, &turn.MessageTS, &turn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read turns: %v", ErrUnavailable, err)
	}

	return orderForPrompt(turns, maxTurns), nil
}

// orderForPrompt turns a newest-first scan into what callers consume: at most
// maxTurns of the most recent turns, oldest first. The query's LIMIT already
// caps the scan; the cap is enforced here too so the contract does not depend
// on the SQL shape.
func orderForPrompt(turns []Turn, maxTurns int) []Turn {
	if len(turns) > maxTurns {
		turns = turns[:maxTurns]
	}
	reverse(turns)
	return turns
}

func reverse(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
