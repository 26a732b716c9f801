package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/pawmates/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, body string, attachments []string) (*models.Message, error) {
	// Messages use bigserial (auto-increment), so we don't pass an ID.
	// Postgres generates it. RETURNING gives it back.
	if attachments == nil {
		attachments = []string{}
	}

	query := `
		INSERT INTO messages (chat_id, sender_id, body, attachments, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, chat_id, sender_id, body, attachments, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, chatID, senderID, body, attachments).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.SenderID,
		&msg.Body,
		&msg.Attachments,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListByChat returns messages newest first with their read marks attached.
//
// Cursor-based pagination:
//
// before=0 → first page (newest messages). SQL: no WHERE on id.
// before=42 → "give me messages older than ID 42". SQL: WHERE id < 42.
//
// Read marks are aggregated in the same query rather than N+1 lookups;
// an empty aggregate comes back as an empty array, not NULL, thanks to
// the FILTER clause.
func (s *MessageStore) ListByChat(ctx context.Context, chatID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	base := `
		SELECT m.id, m.chat_id, m.sender_id, m.body, m.attachments, m.created_at,
			COALESCE(array_agg(r.user_id) FILTER (WHERE r.user_id IS NOT NULL), '{}'),
			COALESCE(array_agg(r.read_at) FILTER (WHERE r.read_at IS NOT NULL), '{}')
		FROM messages m
		LEFT JOIN message_reads r ON r.message_id = m.id
		WHERE m.chat_id = $1`

	var query string
	var args []any

	if before > 0 {
		query = base + `
		AND m.id < $2
		GROUP BY m.id
		ORDER BY m.id DESC
		LIMIT $3`
		args = []any{chatID, before, limit}
	} else {
		query = base + `
		GROUP BY m.id
		ORDER BY m.id DESC
		LIMIT $2`
		args = []any{chatID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var readers []uuid.UUID
		var readTimes []time.Time
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.Body,
			&msg.Attachments,
			&msg.CreatedAt,
			&readers,
			&readTimes,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		for i, reader := range readers {
			mark := models.ReadMark{UserID: reader}
			if i < len(readTimes) {
				mark.ReadAt = readTimes[i]
			}
			msg.ReadBy = append(msg.ReadBy, mark)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkChatRead appends a read mark for every unread message in the chat
// the user did not send. ON CONFLICT DO NOTHING keeps the receipt list
// append-only with one entry per reader.
func (s *MessageStore) MarkChatRead(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) error {
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, $2, now()
		FROM messages m
		WHERE m.chat_id = $1 AND m.sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("mark chat read: %w", err)
	}
	return nil
}
