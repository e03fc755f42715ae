package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"social-engine/internal/model"
)

// MessageRepository handles chat message persistence.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository instance.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// SaveMessage stores a chat message.
func (r *MessageRepository) SaveMessage(ctx context.Context, msg *model.Message) error {
	const query = `
		INSERT INTO messages (id, room_id, sender, text, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, msg.ID, msg.RoomID, msg.Sender, msg.Text, msg.Type, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages of a room, newest first.
func (r *MessageRepository) RecentMessages(ctx context.Context, roomID string, limit int) ([]*model.Message, error) {
	const query = `
		SELECT id, room_id, sender, text, type, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Sender, &m.Text, &m.Type, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return out, nil
}
