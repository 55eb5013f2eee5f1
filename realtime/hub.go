package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tutorhive/livehub/internal/config"
	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/internal/store"
	"github.com/tutorhive/livehub/internal/telemetry"
)

// Hub owns every live connection of this process and the broadcast groups
// (rooms) they are joined to. Rooms are purely local, computed at connect
// and join time; the cross-process picture lives in the shared store, and
// broadcasts reach other processes through a Redis pub/sub channel that
// every hub subscribes to.
type Hub struct {
	cfg config.WebSocketConfig

	Presence   *PresenceRegistry
	Membership *MembershipCache
	Peers      *PeerRegistry

	threads ThreadLister
	authz   CallAuthorizer
	router  *MessageRouter
	store   *store.RedisStore

	// instanceID tags published fan-out envelopes so a hub can skip the
	// ones it originated (those were already delivered locally).
	instanceID string

	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	clients map[*Client]bool
}

// NewHub creates a hub wired to the shared store and its collaborators.
func NewHub(cfg config.WebSocketConfig, s *store.RedisStore, threads ThreadLister, authz CallAuthorizer) *Hub {
	return &Hub{
		cfg:        cfg,
		Presence:   NewPresenceRegistry(s),
		Membership: NewMembershipCache(s),
		Peers:      NewPeerRegistry(s),
		threads:    threads,
		authz:      authz,
		router:     NewMessageRouter(),
		store:      s,
		instanceID: uuid.New().String(),
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
	}
}

// fanoutEnvelope is the shape published on the broadcast pub/sub channel.
type fanoutEnvelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Run consumes the cross-process broadcast channel until ctx is canceled.
// Intended to be started once per process, in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	logger := slogging.Get()
	sub := h.store.Subscribe(ctx, h.cfg.BroadcastChannel)
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Debug("closing broadcast subscription: %v", err)
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("dropping malformed fan-out envelope: %v", err)
				continue
			}
			if env.Origin == h.instanceID {
				continue
			}
			h.deliverLocal(env.Room, env.Event, env.Payload)
		}
	}
}

// Broadcast delivers an event to every local member of the room, including
// the sender if joined, and relays it to the other server processes.
// Delivery is at-most-once per currently-connected member, FIFO per
// recipient, with no ordering guarantee across recipients.
func (h *Hub) Broadcast(ctx context.Context, room string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		slogging.Get().Error("marshal broadcast %s for room %s: %v", env.MessageType, room, err)
		return
	}

	h.deliverLocal(room, string(env.MessageType), payload)

	fanout, err := json.Marshal(fanoutEnvelope{
		Origin:  h.instanceID,
		Room:    room,
		Event:   string(env.MessageType),
		Payload: payload,
	})
	if err != nil {
		slogging.Get().Error("marshal fan-out for room %s: %v", room, err)
		return
	}
	if err := h.store.Publish(ctx, h.cfg.BroadcastChannel, fanout); err != nil {
		// Local delivery already happened; remote members miss this event.
		telemetry.RegistryErrors.WithLabelValues("broadcast", "publish").Inc()
		slogging.Get().Error("publish fan-out for room %s: %v", room, err)
	}
}

// deliverLocal writes the payload to every local member of the room. A
// member whose send buffer is full is disconnected rather than allowed to
// stall the room.
func (h *Hub) deliverLocal(room, event string, payload []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if client.trySend(payload) {
			telemetry.BroadcastDeliveries.WithLabelValues(event).Inc()
			continue
		}
		telemetry.BroadcastDropped.Inc()
		slogging.Get().Warn("send buffer full for %s in room %s, disconnecting", client.Identity.Label(), room)
		h.disconnectSlow(client)
	}
}

// disconnectSlow tears down a client that cannot keep up. Room removal
// happens before the channel close so no later delivery snapshot can pick
// the client up again.
func (h *Hub) disconnectSlow(client *Client) {
	h.leaveAllRooms(client)
	client.closeSend()
}

// Revert sends a correction to a single client, used when an optimistic
// client-side action must be undone. Never broadcast.
func (h *Hub) Revert(client *Client, code, message string) {
	env, err := NewEvent(MessageTypeError, client.Identity.UserID, ErrorEvent{
		Code:    code,
		Message: message,
	})
	if err != nil {
		slogging.Get().Error("marshal revert for %s: %v", client.Identity.Label(), err)
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		slogging.Get().Error("marshal revert envelope for %s: %v", client.Identity.Label(), err)
		return
	}
	if !client.trySend(payload) {
		telemetry.BroadcastDropped.Inc()
		h.disconnectSlow(client)
	}
}

// joinRoom adds the client to a named broadcast group.
func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	h.mu.Unlock()
	client.addRoom(room)
}

// leaveRoom removes the client from a named broadcast group, dropping the
// group when it empties.
func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
	client.removeRoom(room)
}

// leaveAllRooms removes the client from every group it is joined to and
// returns the list of rooms left.
func (h *Hub) leaveAllRooms(client *Client) []string {
	rooms := client.roomList()
	for _, room := range rooms {
		h.leaveRoom(client, room)
	}
	return rooms
}

// RoomSize returns the number of local members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// attach runs the Connecting -> Attached transition: presence, thread
// rooms, and the presence-changed broadcast. Ghosts have no presence and no
// threads, so for them attaching is a no-op beyond bookkeeping.
func (h *Hub) attach(ctx context.Context, client *Client) {
	logger := slogging.Get()
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	telemetry.ConnectionsActive.WithLabelValues(string(client.Identity.Role)).Inc()
	telemetry.ConnectionsTotal.WithLabelValues("attached").Inc()

	if client.Identity.Ghost {
		logger.Info("ghost connection %s attached for session %s", client.ID, client.Identity.SessionID)
		return
	}

	userID := client.Identity.UserID

	cameOnline, err := h.Presence.ConnectionOpened(ctx, userID)
	if err != nil {
		// Fall back to flipping the flag unconditionally; the counter will
		// resynchronize on the next lifecycle event.
		logger.Error("connection count for user %d failed on attach: %v", userID, err)
		cameOnline = true
	}
	if cameOnline {
		if err := h.Presence.SetOnline(ctx, userID); err != nil {
			logger.Error("marking user %d online failed: %v", userID, err)
		}
	}

	threads, err := h.threads.ListThreads(ctx, userID)
	if err != nil {
		logger.Error("listing threads for user %d failed, joining none: %v", userID, err)
	}
	for _, threadID := range threads {
		h.joinRoom(client, ThreadRoom(threadID))
	}

	if cameOnline {
		h.broadcastStatus(ctx, userID, true, client.roomList())
	}

	logger.Info("connection %s attached for user %d (%d thread rooms)", client.ID, userID, len(threads))
}

// detach runs the Closed transition exactly once per connection, graceful
// or not. Every step is best-effort: a failed registry call is logged and
// the remaining cleanup still runs, because a partially cleaned connection
// beats one that leaks state forever.
func (h *Hub) detach(client *Client) {
	ctx := context.Background()
	logger := slogging.Get()
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	telemetry.ConnectionsActive.WithLabelValues(string(client.Identity.Role)).Dec()

	rooms := h.leaveAllRooms(client)

	if client.Identity.Ghost {
		if sessionID := client.Identity.SessionID; sessionID != "" {
			if err := h.Peers.RemoveGhostPeerID(ctx, sessionID); err != nil {
				logger.Error("ghost peer cleanup for session %s failed: %v", sessionID, err)
			}
		}
		logger.Info("ghost connection %s closed for session %s", client.ID, client.Identity.SessionID)
		return
	}

	userID := client.Identity.UserID

	wentOffline, err := h.Presence.ConnectionClosed(ctx, userID)
	if err != nil {
		logger.Error("connection count for user %d failed on close: %v", userID, err)
		wentOffline = true
	}
	if wentOffline {
		if err := h.Presence.SetOffline(ctx, userID); err != nil {
			logger.Error("marking user %d offline failed: %v", userID, err)
		}
		h.broadcastStatus(ctx, userID, false, rooms)
	}

	if sessionID, ok, err := h.Membership.RemoveMemberByUserID(ctx, userID); err != nil {
		logger.Error("membership cleanup for user %d failed: %v", userID, err)
	} else if ok {
		h.notifyMemberLeft(ctx, sessionID, userID)
	}

	if err := h.Peers.RemoveUserPeerID(ctx, userID); err != nil {
		logger.Error("peer cleanup for user %d failed: %v", userID, err)
	}

	logger.Info("connection %s closed for user %d", client.ID, userID)
}

// broadcastStatus announces a presence transition to the user's thread
// rooms. Call rooms are skipped: session membership has its own events.
func (h *Hub) broadcastStatus(ctx context.Context, userID int64, online bool, rooms []string) {
	env, err := NewEvent(MessageTypeUserStatusChanged, userID, UserStatusChangedEvent{
		UserID: userID,
		Online: online,
	})
	if err != nil {
		slogging.Get().Error("building status event for user %d: %v", userID, err)
		return
	}
	for _, room := range rooms {
		if strings.HasPrefix(room, "thread:") {
			h.Broadcast(ctx, room, env)
		}
	}
}

// notifyMemberLeft tells the remaining members of a session that a
// participant is gone. The departing connection has already left the room.
func (h *Hub) notifyMemberLeft(ctx context.Context, sessionID string, userID int64) {
	env, err := NewEvent(MessageTypeMemberLeft, userID, MemberLeftEvent{UserID: userID})
	if err != nil {
		slogging.Get().Error("building member-left event for session %s: %v", sessionID, err)
		return
	}
	h.Broadcast(ctx, CallRoom(sessionID), env)
}

// Shutdown closes every live client, including ones joined to no room.
// Used on graceful server stop.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.closeSend()
	}
}

// route hands an inbound message to the router. Split out for tests.
func (h *Hub) route(ctx context.Context, client *Client, message []byte) {
	if err := h.router.RouteMessage(ctx, h, client, message); err != nil {
		slogging.Get().Error("handling message from %s failed: %v", client.Identity.Label(), err)
	}
}
