package matching

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testWorld bundles the fakes behind a wired Service so each test reads
// as a scenario, not plumbing.
type testWorld struct {
	pets     *fakePetRepo
	matches  *fakeMatchRepo
	chats    *fakeChatRepo
	users    *fakeUserRepo
	notifier *recordingNotifier
	svc      *Service
}

func newTestWorld() *testWorld {
	w := &testWorld{
		pets:     newFakePetRepo(),
		matches:  newFakeMatchRepo(),
		chats:    newFakeChatRepo(),
		users:    newFakeUserRepo(),
		notifier: newRecordingNotifier(),
	}
	w.svc = NewService(w.pets, w.matches, w.chats, w.users, w.notifier, nil, zap.NewNop())
	return w
}

// addOwnerWithPet creates a user and one pet of the given type.
func (w *testWorld) addOwnerWithPet(name string, petType models.PetType) (models.User, models.Pet) {
	user := models.User{ID: uuid.New(), Email: name + "@example.com", DisplayName: name}
	w.users.add(user)
	pet := models.Pet{
		ID:      uuid.New(),
		OwnerID: user.ID,
		Name:    name + "'s pet",
		Type:    petType,
	}
	w.pets.add(pet)
	return user, pet
}

func TestOrderPair(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	p1, p2, actingIsP1 := OrderPair(a, b)
	assert.Equal(t, a, p1)
	assert.Equal(t, b, p2)
	assert.True(t, actingIsP1)

	// Swapping the arguments lands on the same canonical slots.
	p1, p2, actingIsP1 = OrderPair(b, a)
	assert.Equal(t, a, p1)
	assert.Equal(t, b, p2)
	assert.False(t, actingIsP1)
}

func TestSwipe_RecordsOnlyActingSide(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	_, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	res, err := w.svc.Swipe(context.Background(), userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.IsMatch, "one-sided like must not match")

	assert.Equal(t, models.DecisionLiked, res.Match.DecisionFor(petA.ID))
	assert.Equal(t, models.DecisionUndecided, res.Match.DecisionFor(petB.ID),
		"the non-acting side must stay untouched")
	assert.Nil(t, res.Match.MatchDate)
	assert.Zero(t, w.notifier.totalMatchEvents())
	assert.Equal(t, 0, w.chats.createCalls)
}

func TestSwipe_MutualLikeCreatesMatchChatAndNotification(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	_, err := w.svc.Swipe(context.Background(), userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)

	res, err := w.svc.Swipe(context.Background(), userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
	require.NotNil(t, res.Match.MatchDate)

	// Exactly one chat, keyed to the ledger entry.
	chat, err := w.chats.GetByMatch(context.Background(), res.Match.ID)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.True(t, chat.HasParticipant(userA.ID))
	assert.True(t, chat.HasParticipant(userB.ID))

	// Only the NON-acting owner is notified: bob completed the match, so
	// alice gets the event, and it carries bob's pet.
	require.Len(t, w.notifier.matchEvents[userA.ID], 1)
	assert.Empty(t, w.notifier.matchEvents[userB.ID])
	ev := w.notifier.matchEvents[userA.ID][0]
	assert.Equal(t, res.Match.ID, ev.MatchID)
	assert.Equal(t, chat.ID, ev.ChatID)
	assert.Equal(t, petB.ID, ev.Pet.ID)
}

func TestSwipe_RepeatLikeDoesNotRenotify(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	ctx := context.Background()
	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	_, err = w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)

	// Re-liking an already matched pair is a no-op transition.
	res, err := w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)

	assert.Equal(t, 1, w.notifier.totalMatchEvents(), "match_created fires once per transition")
	assert.Equal(t, 1, w.chats.createCalls, "at most one chat per match")
}

func TestSwipe_CanonicalOrderIndependentOfWhoFirst(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeCat)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeCat)

	ctx := context.Background()
	_, err := w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, false)
	require.NoError(t, err)
	res, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)

	// Both swipes must have landed on one row, in byte order.
	assert.Len(t, w.matches.entries, 1)
	assert.True(t, bytes.Compare(res.Match.Pet1ID[:], res.Match.Pet2ID[:]) < 0)

	// One liked, one passed: no match, and the pass is attributed to bob.
	assert.False(t, res.IsMatch)
	assert.Equal(t, models.DecisionLiked, res.Match.DecisionFor(petA.ID))
	assert.Equal(t, models.DecisionPassed, res.Match.DecisionFor(petB.ID))
}

func TestSwipe_Guards(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	ctx := context.Background()

	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petA.ID, true)
	assert.ErrorIs(t, err, ErrSamePet)

	// Swiping with someone else's pet reads as "not found", not "forbidden".
	_, err = w.svc.Swipe(ctx, userA.ID, petB.ID, petA.ID, true)
	assert.ErrorIs(t, err, ErrPetNotFound)

	_, err = w.svc.Swipe(ctx, userB.ID, petB.ID, uuid.New(), true)
	assert.ErrorIs(t, err, ErrPetNotFound)
}

func TestUnmatch(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	ctx := context.Background()
	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	res, err := w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)
	chat, err := w.chats.GetByMatch(ctx, res.Match.ID)
	require.NoError(t, err)
	require.NotNil(t, chat)

	require.NoError(t, w.svc.Unmatch(ctx, userA.ID, petA.ID, petB.ID))

	// Ledger flipped: acting side forced to passed, other side untouched.
	entry, err := w.matches.GetByID(ctx, res.Match.ID)
	require.NoError(t, err)
	assert.False(t, entry.IsMatch)
	assert.Nil(t, entry.MatchDate)
	assert.Equal(t, models.DecisionPassed, entry.DecisionFor(petA.ID))
	assert.Equal(t, models.DecisionLiked, entry.DecisionFor(petB.ID))

	// Permanent exclusion recorded on the acting pet.
	got, err := w.pets.GetByID(ctx, petA.ID)
	require.NoError(t, err)
	assert.Contains(t, got.DislikedPets, petB.ID)

	// Chat torn down and both sides told.
	gone, err := w.chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, []uuid.UUID{chat.ID}, w.notifier.chatRemovals[userA.ID])
	assert.Equal(t, []uuid.UUID{chat.ID}, w.notifier.chatRemovals[userB.ID])
}

func TestUnmatch_NoLedgerEntry(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	_, petB := w.addOwnerWithPet("bob", models.PetTypeDog)

	err := w.svc.Unmatch(context.Background(), userA.ID, petA.ID, petB.ID)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestDeletePet_Cascade(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)
	userC, petC := w.addOwnerWithPet("carol", models.PetTypeDog)

	ctx := context.Background()

	// petA is matched with petB, and has a one-sided like from petC.
	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	resB, err := w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)
	_, err = w.svc.Swipe(ctx, userC.ID, petC.ID, petA.ID, true)
	require.NoError(t, err)

	// petC had also excluded petA at some point.
	require.NoError(t, w.pets.AddDisliked(ctx, petC.ID, petA.ID))

	chat, err := w.chats.GetByMatch(ctx, resB.Match.ID)
	require.NoError(t, err)
	require.NotNil(t, chat)

	require.NoError(t, w.svc.DeletePet(ctx, userA.ID, petA.ID))

	// Pet, its ledger rows, and its chat are all gone.
	gonePet, err := w.pets.GetByID(ctx, petA.ID)
	require.NoError(t, err)
	assert.Nil(t, gonePet)
	rows, err := w.matches.ListForPet(ctx, petA.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	goneChat, err := w.chats.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, goneChat)

	// Both chat participants learn about the removal; carol had no chat.
	assert.Equal(t, []uuid.UUID{chat.ID}, w.notifier.chatRemovals[userA.ID])
	assert.Equal(t, []uuid.UUID{chat.ID}, w.notifier.chatRemovals[userB.ID])
	assert.Empty(t, w.notifier.chatRemovals[userC.ID])

	// The deleted pet's id no longer lingers in anyone's exclusion set.
	gotC, err := w.pets.GetByID(ctx, petC.ID)
	require.NoError(t, err)
	assert.NotContains(t, gotC.DislikedPets, petA.ID)
}

func TestEnsureChatForMatch(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)
	userC, _ := w.addOwnerWithPet("carol", models.PetTypeDog)

	ctx := context.Background()
	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	res, err := w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)

	// The chat already exists from the match transition; EnsureChat must
	// return it, not mint another.
	chat, err := w.svc.EnsureChatForMatch(ctx, userA.ID, res.Match.ID)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, 1, w.chats.createCalls)

	again, err := w.svc.EnsureChatForMatch(ctx, userB.ID, res.Match.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	// Outsiders can't conjure a chat for someone else's match.
	_, err = w.svc.EnsureChatForMatch(ctx, userC.ID, res.Match.ID)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = w.svc.EnsureChatForMatch(ctx, userA.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestConfirmedMatches(t *testing.T) {
	w := newTestWorld()
	userA, petA := w.addOwnerWithPet("alice", models.PetTypeDog)
	userB, petB := w.addOwnerWithPet("bob", models.PetTypeDog)
	userC, petC := w.addOwnerWithPet("carol", models.PetTypeDog)

	ctx := context.Background()

	// Matched with bob, merely liked by carol.
	_, err := w.svc.Swipe(ctx, userA.ID, petA.ID, petB.ID, true)
	require.NoError(t, err)
	_, err = w.svc.Swipe(ctx, userB.ID, petB.ID, petA.ID, true)
	require.NoError(t, err)
	_, err = w.svc.Swipe(ctx, userC.ID, petC.ID, petA.ID, true)
	require.NoError(t, err)

	entries, others, err := w.svc.ConfirmedMatches(ctx, userA.ID, petA.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	other, ok := others[entries[0].OtherPet(petA.ID)]
	require.True(t, ok)
	assert.Equal(t, petB.ID, other.ID)
}
