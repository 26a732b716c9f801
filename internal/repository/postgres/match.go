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

type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchColumns = `id, pet1_id, pet2_id, pet1_decision, pet2_decision, is_match, match_date, created_at`

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID,
		&m.Pet1ID,
		&m.Pet2ID,
		&m.Pet1Decision,
		&m.Pet2Decision,
		&m.IsMatch,
		&m.MatchDate,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Reconcile applies one swipe to the canonical pair row, atomically.
//
// The whole read-modify-write runs in a transaction with the row locked
// (SELECT ... FOR UPDATE). Two concurrent swipes on the same pair serialize
// on that lock, so neither can lose the other's decision and only one of
// them can observe the not-matched → matched transition. The mobile
// backend this replaces did a plain read-then-write here; the unique
// constraint stopped duplicate rows but not lost flag updates.
func (s *MatchStore) Reconcile(ctx context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool, decision models.LikeDecision) (*models.Match, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin reconcile: %w", err)
	}
	// Rollback is a no-op after a successful Commit.
	defer tx.Rollback(ctx)

	// Ensure the row exists. DO NOTHING keeps an existing row's decisions
	// untouched; the unique (pet1_id, pet2_id) constraint makes this safe
	// under races — both sides land on the same single row.
	_, err = tx.Exec(ctx, `
		INSERT INTO matches (pet1_id, pet2_id)
		VALUES ($1, $2)
		ON CONFLICT (pet1_id, pet2_id) DO NOTHING`,
		pet1, pet2)
	if err != nil {
		return nil, false, fmt.Errorf("upsert match row: %w", err)
	}

	entry, err := scanMatch(tx.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE pet1_id = $1 AND pet2_id = $2
		FOR UPDATE`,
		pet1, pet2))
	if err != nil {
		return nil, false, fmt.Errorf("lock match row: %w", err)
	}

	previousIsMatch := entry.IsMatch

	// Asymmetric write: only the acting side's decision moves. The other
	// side's pending intent is whatever is already stored, nothing more.
	if actingIsPet1 {
		entry.Pet1Decision = decision
	} else {
		entry.Pet2Decision = decision
	}

	entry.IsMatch = entry.Pet1Decision == models.DecisionLiked &&
		entry.Pet2Decision == models.DecisionLiked
	newlyMatched := entry.IsMatch && !previousIsMatch

	err = tx.QueryRow(ctx, `
		UPDATE matches
		SET pet1_decision = $2,
			pet2_decision = $3,
			is_match = $4,
			match_date = CASE
				WHEN $5 THEN now()
				WHEN NOT $4 THEN NULL
				ELSE match_date
			END
		WHERE id = $1
		RETURNING match_date`,
		entry.ID, entry.Pet1Decision, entry.Pet2Decision, entry.IsMatch, newlyMatched,
	).Scan(&entry.MatchDate)
	if err != nil {
		return nil, false, fmt.Errorf("write swipe: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit reconcile: %w", err)
	}

	return entry, newlyMatched, nil
}

func (s *MatchStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *MatchStore) GetByPair(ctx context.Context, pet1, pet2 uuid.UUID) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE pet1_id = $1 AND pet2_id = $2`

	m, err := scanMatch(s.pool.QueryRow(ctx, query, pet1, pet2))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match by pair: %w", err)
	}
	return m, nil
}

// ListForPet returns every ledger row the pet appears in. The pet can sit
// on either side of the canonical ordering, so both columns are checked.
func (s *MatchStore) ListForPet(ctx context.Context, petID uuid.UUID) ([]models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE pet1_id = $1 OR pet2_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, petID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

func (s *MatchStore) ListConfirmedForPet(ctx context.Context, petID uuid.UUID) ([]models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (pet1_id = $1 OR pet2_id = $1) AND is_match
		ORDER BY match_date DESC`

	rows, err := s.pool.Query(ctx, query, petID)
	if err != nil {
		return nil, fmt.Errorf("list confirmed matches: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// Unmatch drops the pair out of the matched state. The acting side's
// decision becomes "passed" — terminal, so the pair cannot silently
// re-match — while the other side's decision is left as stored.
func (s *MatchStore) Unmatch(ctx context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool) (*models.Match, error) {
	query := `
		UPDATE matches
		SET is_match = false,
			match_date = NULL,
			pet1_decision = CASE WHEN $3 THEN 'passed' ELSE pet1_decision END,
			pet2_decision = CASE WHEN $3 THEN pet2_decision ELSE 'passed' END
		WHERE pet1_id = $1 AND pet2_id = $2
		RETURNING ` + matchColumns

	m, err := scanMatch(s.pool.QueryRow(ctx, query, pet1, pet2, actingIsPet1))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("unmatch: %w", err)
	}
	return m, nil
}

func (s *MatchStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

func collectMatches(rows pgx.Rows) ([]models.Match, error) {
	matches := make([]models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}
