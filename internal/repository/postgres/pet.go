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

type PetStore struct {
	pool *pgxpool.Pool
}

func NewPetStore(pool *pgxpool.Pool) *PetStore {
	return &PetStore{pool: pool}
}

const petColumns = `id, owner_id, name, type, breed, age, gender, size, vaccinated,
	activity_level, temperament, photos, disliked_pets, created_at`

func scanPet(row pgx.Row) (*models.Pet, error) {
	var p models.Pet
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Type,
		&p.Breed,
		&p.Age,
		&p.Gender,
		&p.Size,
		&p.Vaccinated,
		&p.ActivityLevel,
		&p.Temperament,
		&p.Photos,
		&p.DislikedPets,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PetStore) Create(ctx context.Context, pet *models.Pet) (*models.Pet, error) {
	query := `
		INSERT INTO pets (owner_id, name, type, breed, age, gender, size, vaccinated,
			activity_level, temperament, photos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING ` + petColumns

	created, err := scanPet(s.pool.QueryRow(ctx, query,
		pet.OwnerID, pet.Name, pet.Type, pet.Breed, pet.Age, pet.Gender, pet.Size,
		pet.Vaccinated, pet.ActivityLevel, pet.Temperament, pet.Photos,
	))
	if err != nil {
		return nil, fmt.Errorf("insert pet: %w", err)
	}
	return created, nil
}

func (s *PetStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE id = $1`

	p, err := scanPet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pet: %w", err)
	}
	return p, nil
}

func (s *PetStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Pet, error) {
	if len(ids) == 0 {
		return []models.Pet{}, nil
	}

	query := `SELECT ` + petColumns + ` FROM pets WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get pets: %w", err)
	}
	defer rows.Close()

	return collectPets(rows)
}

func (s *PetStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	return collectPets(rows)
}

func (s *PetStore) Update(ctx context.Context, pet *models.Pet) (*models.Pet, error) {
	query := `
		UPDATE pets
		SET name = $2, breed = $3, age = $4, gender = $5, size = $6, vaccinated = $7,
			activity_level = $8, temperament = $9, photos = $10
		WHERE id = $1
		RETURNING ` + petColumns

	updated, err := scanPet(s.pool.QueryRow(ctx, query,
		pet.ID, pet.Name, pet.Breed, pet.Age, pet.Gender, pet.Size,
		pet.Vaccinated, pet.ActivityLevel, pet.Temperament, pet.Photos,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update pet: %w", err)
	}
	return updated, nil
}

func (s *PetStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM pets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}
	return nil
}

// AddDisliked appends to the permanent exclusion array. array_append only
// fires when the id isn't already present, so repeated unmatches stay
// idempotent.
func (s *PetStore) AddDisliked(ctx context.Context, petID, dislikedID uuid.UUID) error {
	query := `
		UPDATE pets
		SET disliked_pets = array_append(disliked_pets, $2)
		WHERE id = $1 AND NOT ($2 = ANY(disliked_pets))`

	if _, err := s.pool.Exec(ctx, query, petID, dislikedID); err != nil {
		return fmt.Errorf("add disliked pet: %w", err)
	}
	return nil
}

// ScrubDisliked removes petID from every exclusion array that mentions it.
// Part of the pet-deletion cascade — no dangling ids left behind.
func (s *PetStore) ScrubDisliked(ctx context.Context, petID uuid.UUID) error {
	query := `
		UPDATE pets
		SET disliked_pets = array_remove(disliked_pets, $1)
		WHERE $1 = ANY(disliked_pets)`

	if _, err := s.pool.Exec(ctx, query, petID); err != nil {
		return fmt.Errorf("scrub disliked pet: %w", err)
	}
	return nil
}

func (s *PetStore) ListFresh(ctx context.Context, petType models.PetType, exclude []uuid.UUID, skip, limit int) ([]models.Pet, error) {
	query := `
		SELECT ` + petColumns + `
		FROM pets
		WHERE type = $1 AND NOT (id = ANY($2))
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4`

	rows, err := s.pool.Query(ctx, query, petType, exclude, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list fresh pets: %w", err)
	}
	defer rows.Close()

	return collectPets(rows)
}

// ListFreshNear is the geo-aware variant: same filter plus a haversine
// radius check against the owner's coordinates, computed in SQL.
//
// Owners sitting at the (0, 0) "unset" sentinel are always included —
// a missing location means "assume very close", never "exclude".
func (s *PetStore) ListFreshNear(ctx context.Context, petType models.PetType, exclude []uuid.UUID, center geo.Point, radiusKM float64, skip, limit int) ([]models.Pet, error) {
	// least(1.0, ...) guards acos against floating-point drift just above 1
	// for near-identical coordinates.
	query := `
		SELECT p.id, p.owner_id, p.name, p.type, p.breed, p.age, p.gender, p.size,
			p.vaccinated, p.activity_level, p.temperament, p.photos, p.disliked_pets, p.created_at
		FROM pets p
		JOIN users u ON u.id = p.owner_id
		WHERE p.type = $1 AND NOT (p.id = ANY($2))
		AND (
			(u.longitude = 0 AND u.latitude = 0)
			OR 6371 * acos(least(1.0,
				cos(radians($3)) * cos(radians(u.latitude)) * cos(radians(u.longitude) - radians($4))
				+ sin(radians($3)) * sin(radians(u.latitude))
			)) <= $5
		)
		ORDER BY p.created_at DESC
		OFFSET $6 LIMIT $7`

	rows, err := s.pool.Query(ctx, query, petType, exclude, center.Latitude, center.Longitude, radiusKM, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list fresh pets near: %w", err)
	}
	defer rows.Close()

	return collectPets(rows)
}

func collectPets(rows pgx.Rows) ([]models.Pet, error) {
	pets := make([]models.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		pets = append(pets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}
	return pets, nil
}
