package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records everything the hub enqueues on it.
type fakeConn struct {
	id   string
	mu   sync.Mutex
	sent []outbound
	full bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(ev outbound) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.sent = append(f.sent, ev)
	return true
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, ev := range f.sent {
		out = append(out, ev.Event)
	}
	return out
}

// fakeChats resolves chats from a fixed map.
type fakeChats struct {
	chats map[uuid.UUID]*models.Chat
}

func (f *fakeChats) GetByID(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// hubFixture is a hub with two authenticated users sharing one chat.
type hubFixture struct {
	hub          *Hub
	chat         *models.Chat
	alice, bob   uuid.UUID
	aConn, bConn *fakeConn
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	f := &hubFixture{
		alice: uuid.New(),
		bob:   uuid.New(),
		aConn: &fakeConn{id: "conn-alice"},
		bConn: &fakeConn{id: "conn-bob"},
	}
	f.chat = &models.Chat{
		ID:      uuid.New(),
		MatchID: uuid.New(),
		User1ID: f.alice,
		User2ID: f.bob,
	}

	resolver := &fakeChats{chats: map[uuid.UUID]*models.Chat{f.chat.ID: f.chat}}
	f.hub = NewHub(NewPresence(), resolver, zap.NewNop())

	f.hub.Attach(f.aConn)
	f.hub.Attach(f.bConn)
	f.authenticate(t, f.aConn, f.alice)
	f.authenticate(t, f.bConn, f.bob)
	return f
}

func (f *hubFixture) authenticate(t *testing.T, c *fakeConn, userID uuid.UUID) {
	t.Helper()
	data, err := json.Marshal(map[string]string{"userId": userID.String()})
	require.NoError(t, err)
	f.hub.HandleEvent(context.Background(), c, Envelope{Event: EventAuthenticate, Data: data})
}

func (f *hubFixture) sendMessage(c *fakeConn, senderID uuid.UUID, content string) {
	payload := fmt.Sprintf(`{"chatId":%q,"senderId":%q,"content":%q}`,
		f.chat.ID, senderID, content)
	f.hub.HandleEvent(context.Background(), c, Envelope{
		Event: EventSendMessage,
		Data:  json.RawMessage(payload),
	})
}

func TestHub_AuthenticateBindsPresence(t *testing.T) {
	f := newHubFixture(t)

	connID, ok := f.hub.presence.ConnFor(f.alice)
	require.True(t, ok)
	assert.Equal(t, f.aConn.id, connID)
}

func TestHub_AuthenticateAcceptsBareStringPayload(t *testing.T) {
	hub := NewHub(NewPresence(), &fakeChats{}, zap.NewNop())
	c := &fakeConn{id: "conn-1"}
	hub.Attach(c)
	user := uuid.New()

	data, err := json.Marshal(user.String())
	require.NoError(t, err)
	hub.HandleEvent(context.Background(), c, Envelope{Event: EventAuthenticate, Data: data})

	connID, ok := hub.presence.ConnFor(user)
	require.True(t, ok)
	assert.Equal(t, "conn-1", connID)
}

func TestHub_SendMessageReachesOtherParticipantOnly(t *testing.T) {
	f := newHubFixture(t)

	f.sendMessage(f.aConn, f.alice, "hello from alice")

	require.Equal(t, []string{EventReceiveMessage}, f.bConn.events())
	assert.Empty(t, f.aConn.events(), "the sender's own connection must not get an echo")

	data, ok := f.bConn.sent[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.chat.ID, data["chatId"])
	assert.Equal(t, f.alice, data["senderId"])
	assert.Equal(t, "hello from alice", data["content"])
}

func TestHub_SendMessageLegacyEventName(t *testing.T) {
	f := newHubFixture(t)

	payload := fmt.Sprintf(`{"chatId":%q,"senderId":%q,"content":"hi"}`, f.chat.ID, f.alice)
	f.hub.HandleEvent(context.Background(), f.aConn, Envelope{
		Event: EventMessageLegacy,
		Data:  json.RawMessage(payload),
	})

	assert.Equal(t, []string{EventReceiveMessage}, f.bConn.events())
}

func TestHub_SendMessageOfflineRecipientIsSkipped(t *testing.T) {
	f := newHubFixture(t)

	f.hub.Detach(f.bConn.id)
	f.sendMessage(f.aConn, f.alice, "anyone there?")

	assert.Empty(t, f.bConn.events())
	assert.Empty(t, f.aConn.events())
}

func TestHub_SendMessageRejectsNonParticipant(t *testing.T) {
	f := newHubFixture(t)

	mallory := uuid.New()
	mConn := &fakeConn{id: "conn-mallory"}
	f.hub.Attach(mConn)
	f.authenticate(t, mConn, mallory)

	f.sendMessage(mConn, mallory, "let me in")

	assert.Empty(t, f.aConn.events())
	assert.Empty(t, f.bConn.events())
}

func TestHub_SendMessageUnknownChatIsDropped(t *testing.T) {
	f := newHubFixture(t)

	payload := fmt.Sprintf(`{"chatId":%q,"senderId":%q,"content":"hi"}`, uuid.New(), f.alice)
	f.hub.HandleEvent(context.Background(), f.aConn, Envelope{
		Event: EventSendMessage,
		Data:  json.RawMessage(payload),
	})

	assert.Empty(t, f.bConn.events())
}

func TestHub_JoinChatBothSpellings(t *testing.T) {
	f := newHubFixture(t)

	// Wrapped payload with the modern name.
	data, err := json.Marshal(map[string]string{"chatId": f.chat.ID.String()})
	require.NoError(t, err)
	f.hub.HandleEvent(context.Background(), f.aConn, Envelope{Event: EventJoinChat, Data: data})
	assert.True(t, f.hub.InRoom(f.chat.ID, f.aConn.id))

	// Bare string payload with the legacy name.
	bare, err := json.Marshal(f.chat.ID.String())
	require.NoError(t, err)
	f.hub.HandleEvent(context.Background(), f.bConn, Envelope{Event: EventJoinChatLegacy, Data: bare})
	assert.True(t, f.hub.InRoom(f.chat.ID, f.bConn.id))
}

func TestHub_MatchCreatedTargetsOneUser(t *testing.T) {
	f := newHubFixture(t)

	event := matching.MatchEvent{MatchID: uuid.New(), ChatID: uuid.New()}
	f.hub.MatchCreated(f.bob, event)

	require.Equal(t, []string{EventMatchCreated}, f.bConn.events())
	assert.Empty(t, f.aConn.events())

	got, ok := f.bConn.sent[0].Data.(matching.MatchEvent)
	require.True(t, ok)
	assert.Equal(t, event.MatchID, got.MatchID)
}

func TestHub_MatchCreatedOfflineIsSilent(t *testing.T) {
	f := newHubFixture(t)

	// Must not panic or leak to anyone else.
	f.hub.MatchCreated(uuid.New(), matching.MatchEvent{MatchID: uuid.New()})
	assert.Empty(t, f.aConn.events())
	assert.Empty(t, f.bConn.events())
}

func TestHub_ChatRemoved(t *testing.T) {
	f := newHubFixture(t)

	f.hub.ChatRemoved(f.alice, f.chat.ID)

	require.Equal(t, []string{EventChatRemoved}, f.aConn.events())
	data, ok := f.aConn.sent[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.chat.ID, data["chatId"])
}

func TestHub_DetachCleansRoomsAndPresence(t *testing.T) {
	f := newHubFixture(t)

	data, err := json.Marshal(map[string]string{"chatId": f.chat.ID.String()})
	require.NoError(t, err)
	f.hub.HandleEvent(context.Background(), f.aConn, Envelope{Event: EventJoinChat, Data: data})
	require.True(t, f.hub.InRoom(f.chat.ID, f.aConn.id))

	f.hub.Detach(f.aConn.id)

	assert.False(t, f.hub.InRoom(f.chat.ID, f.aConn.id))
	_, ok := f.hub.presence.ConnFor(f.alice)
	assert.False(t, ok)
}

func TestHub_FullSendBufferDropsEvent(t *testing.T) {
	f := newHubFixture(t)

	f.bConn.full = true
	f.sendMessage(f.aConn, f.alice, "this one gets dropped")

	// No delivery, no panic, no retry loop.
	assert.Empty(t, f.bConn.events())
}

func TestDecodeID(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name   string
		data   string
		wantOK bool
	}{
		{"bare string", fmt.Sprintf("%q", id), true},
		{"wrapped", fmt.Sprintf(`{"chatId":%q}`, id), true},
		{"wrong key", fmt.Sprintf(`{"userId":%q}`, id), false},
		{"not a uuid", `"definitely-not"`, false},
		{"garbage", `42`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeID(json.RawMessage(tt.data), "chatId")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, id, got)
			}
		})
	}
}
