package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tutorhive/livehub/internal/slogging"
)

// Client is one live duplex connection with its resolved identity and the
// set of broadcast groups it is joined to. A reconnect is a brand-new
// Client; continuity across reconnects comes from the shared registries
// being keyed by user id, not by connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	Identity Identity
	// ID is the ephemeral connection id, for logs only.
	ID string

	send       chan []byte
	sendMu     sync.Mutex
	sendClosed bool
	closeOnce  sync.Once

	mu    sync.RWMutex
	rooms map[string]bool
}

// newClient builds a client around an upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn, identity Identity) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		Identity: identity,
		ID:       uuid.New().String(),
		send:     make(chan []byte, hub.cfg.SendBufferSize),
		rooms:    make(map[string]bool),
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// InRoom reports whether the client is joined to the named group.
func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) roomList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// trySend queues a message for WritePump without blocking. Returns false
// when the buffer is full or the channel is already closed.
func (c *Client) trySend(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once, which terminates WritePump
// and in turn the underlying connection. It holds the same mutex as
// trySend so a racing delivery can never write to a closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// close runs the Closed transition exactly once, whether the transport
// close was graceful or abrupt.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.detach(c)
		c.closeSend()
		if err := c.conn.Close(); err != nil {
			slogging.Get().Debug("closing connection %s: %v", c.ID, err)
		}
	})
}

// ReadPump pumps messages from the connection to the hub's router.
// Handlers for one connection run here one at a time, in arrival order.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.close()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimitBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout.Std()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongTimeout.Std()))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("read error on connection %s (%s): %v", c.ID, c.Identity.Label(), err)
			}
			return
		}
		c.hub.route(ctx, c, message)
	}
}

// WritePump pumps messages from the send channel to the connection and
// keeps the connection alive with periodic pings.
func (c *Client) WritePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval.Std())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout.Std()))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout.Std()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if !c.Identity.Ghost {
				if err := c.hub.Presence.RefreshLiveness(context.Background(), c.Identity.UserID); err != nil {
					slogging.Get().Debug("liveness refresh for user %d: %v", c.Identity.UserID, err)
				}
			}
		}
	}
}
