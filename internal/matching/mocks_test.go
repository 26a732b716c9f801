package matching

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/geo"
	"github.com/lalith-99/pawmates/internal/models"
)

// In-memory fakes for the repository interfaces. Hand-written rather than
// generated: the ledger fake has to faithfully reproduce the canonical-
// pair and asymmetric-write semantics or the service tests prove nothing.

type fakePetRepo struct {
	mu   sync.Mutex
	pets map[uuid.UUID]*models.Pet

	// listFreshNearErr forces the geo query path to fail, exercising the
	// fallback-to-non-geo behavior.
	listFreshNearErr error
	freshNearCalls   int
	freshCalls       int
}

func newFakePetRepo() *fakePetRepo {
	return &fakePetRepo{pets: make(map[uuid.UUID]*models.Pet)}
}

func (f *fakePetRepo) add(p models.Pet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := p
	f.pets[p.ID] = &stored
}

func (f *fakePetRepo) Create(_ context.Context, pet *models.Pet) (*models.Pet, error) {
	pet.ID = uuid.New()
	pet.CreatedAt = time.Now()
	f.add(*pet)
	return pet, nil
}

func (f *fakePetRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pets[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePetRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]models.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Pet, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.pets[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePetRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Pet, 0)
	for _, p := range f.pets {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePetRepo) Update(_ context.Context, pet *models.Pet) (*models.Pet, error) {
	f.add(*pet)
	return pet, nil
}

func (f *fakePetRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pets, id)
	return nil
}

func (f *fakePetRepo) AddDisliked(_ context.Context, petID, dislikedID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pets[petID]
	if !ok {
		return errors.New("no such pet")
	}
	for _, id := range p.DislikedPets {
		if id == dislikedID {
			return nil
		}
	}
	p.DislikedPets = append(p.DislikedPets, dislikedID)
	return nil
}

func (f *fakePetRepo) ScrubDisliked(_ context.Context, petID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pets {
		kept := p.DislikedPets[:0]
		for _, id := range p.DislikedPets {
			if id != petID {
				kept = append(kept, id)
			}
		}
		p.DislikedPets = kept
	}
	return nil
}

func (f *fakePetRepo) fresh(petType models.PetType, exclude []uuid.UUID) []models.Pet {
	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	out := make([]models.Pet, 0)
	for _, p := range f.pets {
		if p.Type == petType && !excluded[p.ID] {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func paginate(pets []models.Pet, skip, limit int) []models.Pet {
	if skip >= len(pets) {
		return []models.Pet{}
	}
	pets = pets[skip:]
	if limit < len(pets) {
		pets = pets[:limit]
	}
	return pets
}

func (f *fakePetRepo) ListFresh(_ context.Context, petType models.PetType, exclude []uuid.UUID, skip, limit int) ([]models.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freshCalls++
	return paginate(f.fresh(petType, exclude), skip, limit), nil
}

func (f *fakePetRepo) ListFreshNear(_ context.Context, petType models.PetType, exclude []uuid.UUID, center geo.Point, radiusKM float64, skip, limit int) ([]models.Pet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freshNearCalls++
	if f.listFreshNearErr != nil {
		return nil, f.listFreshNearErr
	}
	// The fake doesn't know owner locations; the service's annotate step
	// applies the radius cut anyway, so returning the plain fresh list
	// matches what the SQL path produces for in-radius owners.
	return paginate(f.fresh(petType, exclude), skip, limit), nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{entries: make(map[uuid.UUID]*models.Match)}
}

func (f *fakeMatchRepo) byPair(pet1, pet2 uuid.UUID) *models.Match {
	for _, m := range f.entries {
		if m.Pet1ID == pet1 && m.Pet2ID == pet2 {
			return m
		}
	}
	return nil
}

func (f *fakeMatchRepo) Reconcile(_ context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool, decision models.LikeDecision) (*models.Match, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := f.byPair(pet1, pet2)
	if m == nil {
		m = &models.Match{
			ID:           uuid.New(),
			Pet1ID:       pet1,
			Pet2ID:       pet2,
			Pet1Decision: models.DecisionUndecided,
			Pet2Decision: models.DecisionUndecided,
			CreatedAt:    time.Now(),
		}
		f.entries[m.ID] = m
	}

	previous := m.IsMatch
	if actingIsPet1 {
		m.Pet1Decision = decision
	} else {
		m.Pet2Decision = decision
	}
	m.IsMatch = m.Pet1Decision == models.DecisionLiked && m.Pet2Decision == models.DecisionLiked
	newly := m.IsMatch && !previous
	if newly {
		now := time.Now()
		m.MatchDate = &now
	} else if !m.IsMatch {
		m.MatchDate = nil
	}

	cp := *m
	return &cp, newly, nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchRepo) GetByPair(_ context.Context, pet1, pet2 uuid.UUID) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.byPair(pet1, pet2)
	if m == nil {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchRepo) ListForPet(_ context.Context, petID uuid.UUID) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Match, 0)
	for _, m := range f.entries {
		if m.Pet1ID == petID || m.Pet2ID == petID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMatchRepo) ListConfirmedForPet(_ context.Context, petID uuid.UUID) ([]models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Match, 0)
	for _, m := range f.entries {
		if (m.Pet1ID == petID || m.Pet2ID == petID) && m.IsMatch {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMatchRepo) Unmatch(_ context.Context, pet1, pet2 uuid.UUID, actingIsPet1 bool) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.byPair(pet1, pet2)
	if m == nil {
		return nil, nil
	}
	m.IsMatch = false
	m.MatchDate = nil
	if actingIsPet1 {
		m.Pet1Decision = models.DecisionPassed
	} else {
		m.Pet2Decision = models.DecisionPassed
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[uuid.UUID]*models.Chat

	createCalls int
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[uuid.UUID]*models.Chat)}
}

func (f *fakeChatRepo) Create(_ context.Context, matchID, user1ID, user2ID uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	for _, c := range f.chats {
		if c.MatchID == matchID {
			return nil, errors.New("duplicate chat for match")
		}
	}
	c := &models.Chat{
		ID:        uuid.New(),
		MatchID:   matchID,
		User1ID:   user1ID,
		User2ID:   user2ID,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	f.chats[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeChatRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChatRepo) GetByMatch(_ context.Context, matchID uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.MatchID == matchID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeChatRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Chat, 0)
	for _, c := range f.chats {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChatRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, id)
	return nil
}

func (f *fakeChatRepo) SetLastMessage(_ context.Context, chatID uuid.UUID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.chats[chatID]; ok {
		c.LastMessageID = &messageID
	}
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) add(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := u
	f.users[u.ID] = &stored
}

func (f *fakeUserRepo) Create(_ context.Context, email, displayName, passwordHash, oauthProvider, oauthSubject string) (*models.User, error) {
	u := models.User{
		ID:            uuid.New(),
		Email:         email,
		DisplayName:   displayName,
		PasswordHash:  passwordHash,
		OAuthProvider: oauthProvider,
		OAuthSubject:  oauthSubject,
		CreatedAt:     time.Now(),
	}
	f.add(u)
	return &u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateLocation(_ context.Context, id uuid.UUID, lon, lat float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Longitude, u.Latitude = lon, lat
	}
	return nil
}

func (f *fakeUserRepo) UpdatePushToken(_ context.Context, id uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PushToken = token
	}
	return nil
}

func (f *fakeUserRepo) Locations(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]geo.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]geo.Point, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = geo.Point{Longitude: u.Longitude, Latitude: u.Latitude}
		}
	}
	return out, nil
}

// recordingNotifier captures everything the service dispatches.
type recordingNotifier struct {
	mu           sync.Mutex
	matchEvents  map[uuid.UUID][]MatchEvent
	chatRemovals map[uuid.UUID][]uuid.UUID
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		matchEvents:  make(map[uuid.UUID][]MatchEvent),
		chatRemovals: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *recordingNotifier) MatchCreated(userID uuid.UUID, event MatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchEvents[userID] = append(r.matchEvents[userID], event)
}

func (r *recordingNotifier) ChatRemoved(userID uuid.UUID, chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatRemovals[userID] = append(r.chatRemovals[userID], chatID)
}

func (r *recordingNotifier) totalMatchEvents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evs := range r.matchEvents {
		n += len(evs)
	}
	return n
}
