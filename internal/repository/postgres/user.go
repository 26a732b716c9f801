package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/pawmates/internal/geo"
	"github.com/lalith-99/pawmates/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, oauth_provider, oauth_subject,
	longitude, latitude, push_token, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.OAuthProvider,
		&u.OAuthSubject,
		&u.Longitude,
		&u.Latitude,
		&u.PushToken,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row. Postgres generates the UUID and timestamp.
// Location starts at the (0, 0) "unset" sentinel.
func (s *UserStore) Create(ctx context.Context, email, displayName, passwordHash, oauthProvider, oauthSubject string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, password_hash, oauth_provider, oauth_subject, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, email, displayName, passwordHash, oauthProvider, oauthSubject))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks up a user by email. Used for login — you type your
// email, we find you.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateLocation(ctx context.Context, id uuid.UUID, lon, lat float64) error {
	query := `UPDATE users SET longitude = $2, latitude = $3 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, lon, lat); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}

func (s *UserStore) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE users SET push_token = $2 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, token); err != nil {
		return fmt.Errorf("update push token: %w", err)
	}
	return nil
}

// Locations resolves owner ids to coordinate points in one query. The feed
// uses this to annotate candidates with their owners' distance.
func (s *UserStore) Locations(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]geo.Point, error) {
	locations := make(map[uuid.UUID]geo.Point, len(ids))
	if len(ids) == 0 {
		return locations, nil
	}

	query := `SELECT id, longitude, latitude FROM users WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var p geo.Point
		if err := rows.Scan(&id, &p.Longitude, &p.Latitude); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}

	return locations, nil
}
