package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/pawmates/internal/models"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

const chatColumns = `id, match_id, user1_id, user2_id, last_message_id, is_active, created_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	err := row.Scan(
		&c.ID,
		&c.MatchID,
		&c.User1ID,
		&c.User2ID,
		&c.LastMessageID,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts the chat for a freshly matched pair. The unique match_id
// constraint is the hard backstop: even if two callers raced here, only
// one insert can land.
func (s *ChatStore) Create(ctx context.Context, matchID, user1ID, user2ID uuid.UUID) (*models.Chat, error) {
	query := `
		INSERT INTO chats (match_id, user1_id, user2_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING ` + chatColumns

	c, err := scanChat(s.pool.QueryRow(ctx, query, matchID, user1ID, user2ID))
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return c, nil
}

func (s *ChatStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	c, err := scanChat(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

func (s *ChatStore) GetByMatch(ctx context.Context, matchID uuid.UUID) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE match_id = $1`

	c, err := scanChat(s.pool.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat by match: %w", err)
	}
	return c, nil
}

// ListByUser returns the user's chats, most recently active first
// (last message id is monotonic, so it doubles as an activity cursor).
func (s *ChatStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY last_message_id DESC NULLS LAST, created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}

// Delete removes the chat; messages go with it via ON DELETE CASCADE.
func (s *ChatStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *ChatStore) SetLastMessage(ctx context.Context, chatID uuid.UUID, messageID int64) error {
	query := `UPDATE chats SET last_message_id = $2 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, chatID, messageID); err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}
