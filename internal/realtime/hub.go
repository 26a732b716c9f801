package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/models"
	"go.uber.org/zap"
)

// Event names. The duplicated inbound names (join_chat/join-chat,
// send_message/message) exist for compatibility with two generations of
// the mobile client protocol; both spellings are accepted forever.
const (
	EventAuthenticate   = "authenticate"
	EventJoinChat       = "join_chat"
	EventJoinChatLegacy = "join-chat"
	EventSendMessage    = "send_message"
	EventMessageLegacy  = "message"
	EventReceiveMessage = "receive_message"
	EventMatchCreated   = "match_created"
	EventChatRemoved    = "chat_removed"
)

// Envelope is the wire frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is an envelope whose data is still a Go value; it is
// marshalled once, at send time.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is what the hub needs from a connection: an id and a non-blocking
// enqueue. The websocket client implements it; tests use in-memory fakes.
type Conn interface {
	ID() string
	// Enqueue hands an event to the connection's writer. It must not
	// block; returning false means the send buffer is full and the event
	// was dropped.
	Enqueue(ev outbound) bool
}

// ChatResolver is the slice of the chat repository the hub needs to route
// a message to its participants.
type ChatResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
}

// Hub routes realtime events between connections.
//
// Message delivery is deliberately direct per-participant via the
// presence registry, NOT a room broadcast: delivery targets an
// authenticated identity, so it works even if the recipient never called
// join_chat for the room after reconnecting. Rooms are still tracked so
// join semantics stay compatible with the historical clients, but they
// are not the delivery path.
//
// A participant with no live connection is silently skipped — there is no
// offline queue and no push fallback. Known gap.
type Hub struct {
	presence *Presence
	chats    ChatResolver
	logger   *zap.Logger

	mu    sync.RWMutex
	conns map[string]Conn
	rooms map[uuid.UUID]map[string]struct{}
}

func NewHub(presence *Presence, chats ChatResolver, logger *zap.Logger) *Hub {
	return &Hub{
		presence: presence,
		chats:    chats,
		logger:   logger,
		conns:    make(map[string]Conn),
		rooms:    make(map[uuid.UUID]map[string]struct{}),
	}
}

// Attach registers a live connection with the hub. Presence is NOT
// touched until the connection authenticates.
func (h *Hub) Attach(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Detach removes a connection: hub map, every room, and both presence
// directions.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	for chatID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.mu.Unlock()

	if userID, ok := h.presence.Unregister(connID); ok {
		h.logger.Debug("connection detached",
			zap.String("conn_id", connID),
			zap.String("user_id", userID.String()),
		)
	}
}

// HandleEvent dispatches one inbound frame from a connection.
func (h *Hub) HandleEvent(ctx context.Context, c Conn, env Envelope) {
	switch env.Event {
	case EventAuthenticate:
		h.handleAuthenticate(c, env.Data)
	case EventJoinChat, EventJoinChatLegacy:
		h.handleJoinChat(c, env.Data)
	case EventSendMessage, EventMessageLegacy:
		h.handleSendMessage(ctx, c, env.Data)
	default:
		h.logger.Debug("ignoring unknown event",
			zap.String("event", env.Event),
			zap.String("conn_id", c.ID()),
		)
	}
}

func (h *Hub) handleAuthenticate(c Conn, data json.RawMessage) {
	userID, ok := decodeID(data, "userId")
	if !ok {
		h.logger.Warn("authenticate with unusable payload", zap.String("conn_id", c.ID()))
		return
	}
	displaced, had := h.presence.Register(userID, c.ID())
	if had {
		h.logger.Info("user re-authenticated from a new connection",
			zap.String("user_id", userID.String()),
			zap.String("displaced_conn", displaced),
		)
	}
}

func (h *Hub) handleJoinChat(c Conn, data json.RawMessage) {
	chatID, ok := decodeID(data, "chatId")
	if !ok {
		h.logger.Warn("join_chat with unusable payload", zap.String("conn_id", c.ID()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[string]struct{})
	}
	h.rooms[chatID][c.ID()] = struct{}{}
}

// sendMessagePayload is the inbound send_message shape. senderId is
// trusted from the payload for protocol compatibility; the REST path is
// the authenticated one.
type sendMessagePayload struct {
	ChatID   uuid.UUID `json:"chatId"`
	SenderID uuid.UUID `json:"senderId"`
	Content  string    `json:"content"`
}

func (h *Hub) handleSendMessage(ctx context.Context, c Conn, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == uuid.Nil || p.Content == "" {
		h.logger.Warn("send_message with unusable payload", zap.String("conn_id", c.ID()))
		return
	}

	chat, err := h.chats.GetByID(ctx, p.ChatID)
	if err != nil {
		h.logger.Error("resolve chat for send_message", zap.Error(err))
		return
	}
	if chat == nil || !chat.HasParticipant(p.SenderID) {
		h.logger.Warn("send_message for unknown chat or non-participant",
			zap.String("chat_id", p.ChatID.String()),
		)
		return
	}

	// The socket path only relays: the sender's REST call is what
	// persisted the message. A client may therefore see the socket copy
	// before (or, if REST failed after persistence, instead of) a later
	// REST sync — deduplication on the sender's own UI is a client
	// concern.
	ev := outbound{
		Event: EventReceiveMessage,
		Data: map[string]any{
			"chatId":   p.ChatID,
			"senderId": p.SenderID,
			"content":  p.Content,
			"sentAt":   time.Now().UTC(),
		},
	}

	// Direct per-participant dispatch. Skipping is by CONNECTION id, not
	// user id: if the sender somehow appears under another live
	// connection, that device still gets the copy.
	for _, participant := range []uuid.UUID{chat.User1ID, chat.User2ID} {
		connID, online := h.presence.ConnFor(participant)
		if !online || connID == c.ID() {
			continue
		}
		h.deliver(connID, ev)
	}
}

// MatchCreated implements matching.Notifier: a point-to-point nudge to
// the one user who is NOT the actor. Offline recipient = silent drop.
func (h *Hub) MatchCreated(userID uuid.UUID, event matching.MatchEvent) {
	connID, online := h.presence.ConnFor(userID)
	if !online {
		h.logger.Debug("match_created recipient offline", zap.String("user_id", userID.String()))
		return
	}
	h.deliver(connID, outbound{Event: EventMatchCreated, Data: event})
}

// ChatRemoved implements matching.Notifier.
func (h *Hub) ChatRemoved(userID uuid.UUID, chatID uuid.UUID) {
	connID, online := h.presence.ConnFor(userID)
	if !online {
		return
	}
	h.deliver(connID, outbound{
		Event: EventChatRemoved,
		Data:  map[string]any{"chatId": chatID},
	})
}

func (h *Hub) deliver(connID string, ev outbound) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !c.Enqueue(ev) {
		h.logger.Warn("dropping event for slow connection",
			zap.String("conn_id", connID),
			zap.String("event", ev.Event),
		)
	}
}

// InRoom reports whether a connection has joined a chat room.
func (h *Hub) InRoom(chatID uuid.UUID, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[chatID][connID]
	return ok
}

// decodeID accepts both historical payload shapes for id-carrying events:
// a bare string ("<uuid>") and an object wrapper ({"chatId": "<uuid>"}).
// Older clients send the bare form, newer ones the wrapped form.
func decodeID(data json.RawMessage, key string) (uuid.UUID, bool) {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		id, err := uuid.Parse(bare)
		return id, err == nil
	}

	var wrapped map[string]string
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if raw, ok := wrapped[key]; ok {
			id, err := uuid.Parse(raw)
			return id, err == nil
		}
	}

	return uuid.Nil, false
}
