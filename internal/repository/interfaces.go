package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/geo"
	"github.com/lalith-99/pawmates/internal/models"
)

// Why context.Context as the first parameter on every method?
//
//   - It's idiomatic Go for anything that does I/O (DB, Redis, HTTP).
//   - It carries deadlines: if the HTTP request is cancelled (client
//     disconnected), the DB query gets cancelled too. No wasted work.
//   - Rule of thumb in Go: if a function touches the network, it takes ctx.

// UserRepository handles pet-owner accounts.
type UserRepository interface {
	// Create inserts a new user. passwordHash may be empty when the OAuth
	// pair is set; the handler enforces "password or OAuth, at least one".
	Create(ctx context.Context, email, displayName, passwordHash, oauthProvider, oauthSubject string) (*models.User, error)

	// GetByID returns a user. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail returns a user by email. Returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateLocation stores the owner's coordinates. (0, 0) clears them.
	UpdateLocation(ctx context.Context, id uuid.UUID, lon, lat float64) error

	// UpdatePushToken stores the device push token. Nothing reads it yet.
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error

	// Locations resolves owner ids to their coordinate points in one query.
	// Missing users are simply absent from the map.
	Locations(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]geo.Point, error)
}

// PetRepository handles swipeable pet profiles.
type PetRepository interface {
	// Create inserts a pet and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, pet *models.Pet) (*models.Pet, error)

	// GetByID returns a single pet. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pet, error)

	// GetMany returns the pets for the given ids, in no particular order.
	// Ids with no row are silently skipped.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Pet, error)

	// ListByOwner returns all pets belonging to a user, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Pet, error)

	// Update overwrites the mutable profile fields. Returns nil, nil if the
	// pet no longer exists.
	Update(ctx context.Context, pet *models.Pet) (*models.Pet, error)

	// Delete removes the pet row only. The ledger/chat cascade is the
	// matching service's job — it needs the rows before they go.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddDisliked appends dislikedID to the pet's permanent exclusion set.
	// Idempotent: appending an id that is already present is a no-op.
	AddDisliked(ctx context.Context, petID, dislikedID uuid.UUID) error

	// ScrubDisliked removes petID from every other pet's exclusion set.
	// Used when a pet is deleted so no dangling ids accumulate.
	ScrubDisliked(ctx context.Context, petID uuid.UUID) error

	// ListFresh returns pets of the given type that are not in exclude,
	// newest first, paginated. "Fresh" = the requesting pet has never
	// interacted with them; the exclusion set encodes that.
	ListFresh(ctx context.Context, petType models.PetType, exclude []uuid.UUID, skip, limit int) ([]models.Pet, error)

	// ListFreshNear is ListFresh restricted to pets whose owners are within
	// radiusKM of center. Owners with an unset location are always included
	// (missing location means "assume very close", never "exclude").
	ListFreshNear(ctx context.Context, petType models.PetType, exclude []uuid.UUID, center geo.Point, radiusKM float64, skip, limit int) ([]models.Pet, error)
}

// MatchRepository is the ledger: one canonical row per unordered pet pair.
type MatchRepository interface {
	// Reconcile applies one swipe atomically: it upserts the canonical row
	// for (pet1, pet2), writes ONLY the acting side's decision, recomputes
	// is_match, and reports whether this call was the transition into a
	// match (newlyMatched). Runs in a transaction with a row lock so two
	// concurrent swipes on the same pair cannot lose an update or both
	// observe the transition.
	//
	// pet1/pet2 must already be in canonical order; actingIsPet1 says which
	// side is swiping.
	Reconcile(ctx context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool, decision models.LikeDecision) (entry *models.Match, newlyMatched bool, err error)

	// GetByID returns a ledger row by id. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error)

	// GetByPair returns the ledger row for a canonical pair.
	// Returns nil, nil if the pair has no history.
	GetByPair(ctx context.Context, pet1, pet2 uuid.UUID) (*models.Match, error)

	// ListForPet returns every ledger row the pet appears in, either side.
	ListForPet(ctx context.Context, petID uuid.UUID) ([]models.Match, error)

	// ListConfirmedForPet returns only rows with is_match = true.
	ListConfirmedForPet(ctx context.Context, petID uuid.UUID) ([]models.Match, error)

	// Unmatch flips the row out of the matched state: is_match false,
	// match_date null, and the acting side's decision forced to "passed"
	// (terminal — the other side's decision is untouched). Returns the
	// updated row, or nil, nil if the pair has no row.
	Unmatch(ctx context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool) (*models.Match, error)

	// Delete removes a ledger row outright (pet-deletion cascade).
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChatRepository handles the one-chat-per-match channels.
type ChatRepository interface {
	// Create inserts the chat for a match. The unique match_id constraint
	// is the backstop against double creation.
	Create(ctx context.Context, matchID, user1ID, user2ID uuid.UUID) (*models.Chat, error)

	// GetByID returns a chat. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)

	// GetByMatch returns the chat attached to a match, nil, nil if none.
	GetByMatch(ctx context.Context, matchID uuid.UUID) (*models.Chat, error)

	// ListByUser returns chats the user participates in, most recent first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)

	// Delete removes a chat and its messages.
	Delete(ctx context.Context, id uuid.UUID) error

	// SetLastMessage updates the last_message pointer.
	SetLastMessage(ctx context.Context, chatID uuid.UUID, messageID int64) error
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt set.
	Create(ctx context.Context, chatID uuid.UUID, senderID uuid.UUID, body string, attachments []string) (*models.Message, error)

	// ListByChat returns messages with their read marks, newest first.
	// Cursor pagination: before=0 means "from the top" (latest).
	ListByChat(ctx context.Context, chatID uuid.UUID, before int64, limit int) ([]models.Message, error)

	// MarkChatRead appends a read mark for every message in the chat the
	// user hasn't marked yet (and didn't send). One mark per reader per
	// message, append-only.
	MarkChatRead(ctx context.Context, chatID uuid.UUID, userID uuid.UUID) error
}
