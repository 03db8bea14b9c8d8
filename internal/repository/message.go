package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"messagerie/internal/domain"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

// MessageRepository is the durable message store consumed by the hub and the
// REST history endpoint.
type MessageRepository interface {
	Append(ctx context.Context, message *domain.Message) error
	ListByRoom(ctx context.Context, roomCode string) ([]*domain.Message, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Append(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (room_code, sender_id, sender_email, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		message.RoomCode, message.SenderID, message.SenderEmail,
		message.Content, message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.log.Error("Failed to append message", "room", message.RoomCode, "error", err)
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomCode string) ([]*domain.Message, error) {
	// id breaks created_at ties so replay order is stable
	query := `
		SELECT id, room_code, sender_id, sender_email, content, created_at
		FROM messages
		WHERE room_code = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, roomCode)
	if err != nil {
		r.log.Error("Failed to query room history", "room", roomCode, "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		err := rows.Scan(
			&message.ID, &message.RoomCode, &message.SenderID,
			&message.SenderEmail, &message.Content, &message.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("Failed to read room history", "room", roomCode, "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	return messages, nil
}
