package slack

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// MessageLog stores raw Slack messages in Postgres.
type MessageLog struct {
	db *sql.DB
}

func NewMessageLog(db *sql.DB) *MessageLog {
	return &MessageLog{db: db}
}

// InitSchema creates the slack_messages table.
func (l *MessageLog) InitSchema() error {
	slog.Info("Initializing Slack message log schema...")

	createTable := `
		CREATE TABLE IF NOT EXISTS slack_messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			message_ts TEXT NOT NULL,
			thread_ts TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := l.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create slack_messages table: %w", err)
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_slack_messages_unique ON slack_messages(channel_id, message_ts);",
		"CREATE INDEX IF NOT EXISTS idx_slack_messages_thread ON slack_messages(channel_id, thread_ts);",
	}
	for _, indexSQL := range indexes {
		if _, err := l.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	slog.Info("Slack message log schema initialized")
	return nil
}

// StoreMessage records a message. Redelivered events are absorbed by the
// (channel_id, message_ts) uniqueness constraint.
func (l *MessageLog) StoreMessage(ctx context.Context, msg StoredMessage) error {
	query := `
		INSERT INTO slack_messages (channel_id, user_id, text, message_ts, thread_ts)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (channel_id, message_ts) DO NOTHING
	`

	_, err := l.db.ExecContext(ctx, query, msg.ChannelID, msg.UserID, msg.Text, msg.MessageTS, msg.ThreadTS)
	if err != nil {
		return fmt.Errorf("failed to store slack message: %w", err)
	}

	return nil
}

// GetThread returns the logged messages of one thread, oldest first.
func (l *MessageLog) GetThread(ctx context.Context, channelID, threadTS string) ([]StoredMessage, error) {
	query := `
		SELECT id, channel_id, user_id, text, message_ts, COALESCE(thread_ts, ''), created_at
		FROM slack_messages
		WHERE channel_id = $1 AND (thread_ts = $2 OR message_ts = $2)
		ORDER BY message_ts ASC
	`

	rows, err := l.db.QueryContext(ctx, query, channelID, threadTS)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Text, &msg.MessageTS, &msg.ThreadTS, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
