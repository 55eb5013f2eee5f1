package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/internal/telemetry"
)

// Context keys populated by the authentication middleware.
const (
	ContextKeyUserID         = "userID"
	ContextKeyUserRole       = "userRole"
	ContextKeyGhostSessionID = "ghostSessionID"
)

// newUpgrader builds the gorilla upgrader with the configured origin policy.
// An empty allow-list permits every origin (development mode).
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// extractIdentity reads the participant identity the authentication
// middleware resolved into the gin context. Connections without a resolved
// identity never reach Attached.
func extractIdentity(c *gin.Context) (Identity, error) {
	if sessionID, exists := c.Get(ContextKeyGhostSessionID); exists {
		scope, ok := sessionID.(string)
		if !ok || scope == "" {
			return Identity{}, fmt.Errorf("ghost identity without session scope")
		}
		return Identity{Role: RoleGhost, Ghost: true, SessionID: scope}, nil
	}

	rawID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return Identity{}, fmt.Errorf("user identity not found in context")
	}
	userID, ok := rawID.(int64)
	if !ok || userID <= 0 {
		return Identity{}, fmt.Errorf("invalid user identity in context")
	}

	role := RoleStudent
	if rawRole, exists := c.Get(ContextKeyUserRole); exists {
		if r, ok := rawRole.(string); ok && r != "" {
			role = Role(r)
		}
	}

	return Identity{UserID: userID, Role: role}, nil
}

// HandleWS upgrades an authenticated request to a WebSocket connection and
// drives it through the Connecting -> Attached transition.
func (h *Hub) HandleWS(c *gin.Context) {
	logger := slogging.Get()

	identity, err := extractIdentity(c)
	if err != nil {
		telemetry.ConnectionsTotal.WithLabelValues("refused").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "connection handshake failed: " + err.Error(),
		})
		return
	}

	upgrader := newUpgrader(h.cfg.AllowedOrigins)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.ConnectionsTotal.WithLabelValues("refused").Inc()
		logger.Warn("failed to upgrade connection for %s: %v", identity.Label(), err)
		return
	}

	// The request context dies when this handler returns; the connection
	// outlives it, so lifecycle and handler work run on the background
	// context with per-operation store timeouts.
	ctx := context.Background()

	client := newClient(h, conn, identity)
	h.attach(ctx, client)

	go client.WritePump()
	go client.ReadPump(ctx)
}
