package models

import (
	"time"

	"github.com/google/uuid"
)

// LikeDecision is one side's swipe decision inside a match entry.
//
// Why a typed string and not a *bool?
//   - The original mobile backend stored nullable booleans, which forced
//     every reader to distinguish "nil pointer" from "false". A three-value
//     type makes the undecided state explicit and impossible to conflate
//     with "passed".
//   - It reads naturally in SQL too: the column is text with a CHECK
//     constraint, so a broken writer can't sneak a fourth state in.
type LikeDecision string

const (
	DecisionUndecided LikeDecision = "undecided"
	DecisionLiked     LikeDecision = "liked"
	DecisionPassed    LikeDecision = "passed"
)

// PetType is the fixed set of species the feed matches within.
// Candidates are always drawn from the same type as the requesting pet.
type PetType string

const (
	PetTypeDog    PetType = "dog"
	PetTypeCat    PetType = "cat"
	PetTypeBird   PetType = "bird"
	PetTypeRabbit PetType = "rabbit"
	PetTypeOther  PetType = "other"
)

// ValidPetType reports whether t is a member of the fixed set.
func ValidPetType(t PetType) bool {
	switch t {
	case PetTypeDog, PetTypeCat, PetTypeBird, PetTypeRabbit, PetTypeOther:
		return true
	}
	return false
}

// User is a pet owner.
//
// Location is a raw longitude/latitude pair in degrees. (0, 0) means
// "unset" — the feed skips geo filtering entirely for such users rather
// than pretending they sit on null island.
//
// PasswordHash is empty for OAuth-only accounts: a user must have either
// a password or an OAuth identity, enforced at signup.
//
// PushToken is stored so clients can register it, but nothing consumes it
// yet — offline delivery is a known gap, not a feature.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PasswordHash  string    `json:"-"`
	OAuthProvider string    `json:"-"`
	OAuthSubject  string    `json:"-"`
	Longitude     float64   `json:"longitude"`
	Latitude      float64   `json:"latitude"`
	PushToken     string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Pet is a swipeable profile. Owned and mutated by exactly one user.
//
// DislikedPets is a permanent exclusion list kept on the pet itself,
// independent of the match ledger — unmatching writes here too, so a pair
// stays excluded even if the ledger row is later deleted.
type Pet struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	Name          string      `json:"name"`
	Type          PetType     `json:"type"`
	Breed         string      `json:"breed"`
	Age           int         `json:"age"`
	Gender        string      `json:"gender"`
	Size          string      `json:"size"`
	Vaccinated    bool        `json:"vaccinated"`
	ActivityLevel string      `json:"activity_level"`
	Temperament   []string    `json:"temperament"`
	Photos        []string    `json:"photos"`
	DislikedPets  []uuid.UUID `json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Match is the canonical per-pair ledger entry.
//
// Pet1ID always holds the smaller of the two pet UUIDs (byte order). That
// ordering plus a UNIQUE(pet1_id, pet2_id) constraint guarantees at most
// one row per unordered pair, no matter which side swipes first.
//
// IsMatch is derived: it may only become true when both decisions are
// "liked", and the store flips it inside the same transaction that writes
// the deciding swipe. MatchDate is set at that transition and cleared on
// unmatch.
type Match struct {
	ID           uuid.UUID    `json:"id"`
	Pet1ID       uuid.UUID    `json:"pet1_id"`
	Pet2ID       uuid.UUID    `json:"pet2_id"`
	Pet1Decision LikeDecision `json:"pet1_decision"`
	Pet2Decision LikeDecision `json:"pet2_decision"`
	IsMatch      bool         `json:"is_match"`
	MatchDate    *time.Time   `json:"match_date,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// OtherPet returns the pet on the opposite side of the entry.
func (m *Match) OtherPet(petID uuid.UUID) uuid.UUID {
	if m.Pet1ID == petID {
		return m.Pet2ID
	}
	return m.Pet1ID
}

// DecisionFor returns the given pet's own decision in this entry.
func (m *Match) DecisionFor(petID uuid.UUID) LikeDecision {
	if m.Pet1ID == petID {
		return m.Pet1Decision
	}
	return m.Pet2Decision
}

// Chat is the channel created when a ledger entry becomes a match.
// Exactly one chat per match row (unique match_id). Participants are the
// two OWNERS, resolved from the pets at creation time — messages are
// between people, not pets.
type Chat struct {
	ID            uuid.UUID `json:"id"`
	MatchID       uuid.UUID `json:"match_id"`
	User1ID       uuid.UUID `json:"user1_id"`
	User2ID       uuid.UUID `json:"user2_id"`
	LastMessageID *int64    `json:"last_message_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two chat members.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the member that is not userID.
func (c *Chat) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// Message is a single chat message.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table. bigserial is smaller,
//     naturally ordered (higher ID = newer), and index-friendly.
//   - Messages always go through this API, so a single sequence is fine.
type Message struct {
	ID          int64      `json:"id"`
	ChatID      uuid.UUID  `json:"chat_id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	Body        string     `json:"body"`
	Attachments []string   `json:"attachments,omitempty"`
	ReadBy      []ReadMark `json:"read_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ReadMark is one reader's receipt on a message. Append-only, at most one
// per reader.
type ReadMark struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// CandidatePet is a feed entry: the base pet plus optional geo annotation.
//
// The original backend spread extra keys onto the pet object ad-hoc; here
// the enrichment is an explicit wrapper so the shape is the same whether
// or not the requester had a usable location (the geo fields just go
// absent from the JSON).
type CandidatePet struct {
	Pet
	DistanceKM    *float64       `json:"distance,omitempty"`
	OwnerLocation *OwnerLocation `json:"ownerLocation,omitempty"`
}

// OwnerLocation carries the owner's raw coordinates, [longitude, latitude],
// for client-side reverse geocoding. GeoJSON-style ordering.
type OwnerLocation struct {
	Coordinates []float64 `json:"coordinates"`
}
