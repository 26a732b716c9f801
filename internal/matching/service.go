// Package matching owns the swipe ledger semantics: candidate selection,
// like/pass reconciliation, unmatching, and the pet-deletion cascade.
package matching

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/models"
	"github.com/lalith-99/pawmates/internal/repository"
	"go.uber.org/zap"
)

var (
	// ErrPetNotFound covers both "no such pet" and "not your pet".
	// Collapsing the two means the API can't be used to probe which pet
	// ids exist.
	ErrPetNotFound = errors.New("pet not found")

	// ErrSamePet rejects a pet swiping on itself.
	ErrSamePet = errors.New("a pet cannot swipe on itself")

	// ErrNoMatch is returned by Unmatch when the pair has no ledger entry.
	ErrNoMatch = errors.New("no match found for this pair")
)

// Notifier delivers point-to-point realtime events. Implemented by the
// realtime hub; swapped for a recorder in tests. Delivery is fire-and-
// forget — the ledger write always wins over a failed notification.
type Notifier interface {
	// MatchCreated tells ONE user their earlier like turned mutual.
	MatchCreated(userID uuid.UUID, event MatchEvent)

	// ChatRemoved tells a user a chat is gone (unmatch or pet deletion).
	ChatRemoved(userID uuid.UUID, chatID uuid.UUID)
}

// MatchEvent is the payload of a match_created notification.
type MatchEvent struct {
	MatchID   uuid.UUID  `json:"match_id"`
	ChatID    uuid.UUID  `json:"chat_id,omitempty"`
	MatchDate time.Time  `json:"match_date"`
	Pet       models.Pet `json:"pet"`
}

// FeedCache is the optional read-through cache in front of the candidate
// feed. A nil cache disables caching entirely.
type FeedCache interface {
	// GetFeed loads a cached feed page into dest; ok is false on miss.
	GetFeed(ctx context.Context, petID uuid.UUID, params string, dest any) (ok bool, err error)

	// SetFeed stores a feed page.
	SetFeed(ctx context.Context, petID uuid.UUID, params string, value any) error

	// Invalidate drops every cached page for the pet.
	Invalidate(ctx context.Context, petID uuid.UUID) error
}

// Service wires the ledger, pets, chats and the realtime notifier into
// the swipe workflows. Everything is injected so tests can run against
// in-memory fakes.
type Service struct {
	pets     repository.PetRepository
	matches  repository.MatchRepository
	chats    repository.ChatRepository
	users    repository.UserRepository
	notifier Notifier
	cache    FeedCache
	logger   *zap.Logger
}

func NewService(
	pets repository.PetRepository,
	matches repository.MatchRepository,
	chats repository.ChatRepository,
	users repository.UserRepository,
	notifier Notifier,
	cache FeedCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		pets:     pets,
		matches:  matches,
		chats:    chats,
		users:    users,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

// OrderPair maps two pet ids onto the canonical (pet1, pet2) slots:
// pet1 is always the byte-wise smaller UUID. actingIsPet1 reports which
// slot the first argument (the acting pet) landed in.
//
// This single rule is what guarantees at most one ledger row per
// unordered pair — both directions of a swipe resolve to the same row.
func OrderPair(acting, target uuid.UUID) (pet1, pet2 uuid.UUID, actingIsPet1 bool) {
	if bytes.Compare(acting[:], target[:]) < 0 {
		return acting, target, true
	}
	return target, acting, false
}

// ownedPet loads a pet and verifies ownership. Both "absent" and "not
// yours" come back as ErrPetNotFound.
func (s *Service) ownedPet(ctx context.Context, userID, petID uuid.UUID) (*models.Pet, error) {
	pet, err := s.pets.GetByID(ctx, petID)
	if err != nil {
		return nil, err
	}
	if pet == nil || pet.OwnerID != userID {
		return nil, ErrPetNotFound
	}
	return pet, nil
}

// invalidateFeeds drops cached feed pages for the given pets. Cache
// trouble is logged and swallowed — a stale feed page beats a failed
// swipe.
func (s *Service) invalidateFeeds(ctx context.Context, petIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	for _, id := range petIDs {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("feed cache invalidation failed",
				zap.String("pet_id", id.String()),
				zap.Error(err),
			)
		}
	}
}
