package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/tutorhive/livehub/internal/store"
	"github.com/tutorhive/livehub/internal/telemetry"
)

// PeerRegistry maps a participant to the opaque transport peer identifier
// used for direct media signaling. Persistent participants are keyed by
// user id so the registration survives session switching; ghost
// participants have no stable identity and are keyed by the session they
// are scoped to. At most one peer id per key; re-registration silently
// overwrites (a participant may reconnect and register a fresh peer).
type PeerRegistry struct {
	store *store.RedisStore
	keys  *store.KeyBuilder
}

// NewPeerRegistry creates a peer registry backed by the shared store.
func NewPeerRegistry(s *store.RedisStore) *PeerRegistry {
	return &PeerRegistry{
		store: s,
		keys:  store.NewKeyBuilder(),
	}
}

// SetUserPeerID registers (or overwrites) the peer id for a user.
func (p *PeerRegistry) SetUserPeerID(ctx context.Context, userID int64, peerID string) error {
	if err := p.store.Set(ctx, p.keys.UserPeerKey(userID), peerID, 0); err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "set_user").Inc()
		return fmt.Errorf("peer register user=%d: %w", userID, err)
	}
	return nil
}

// GetUserPeerID returns the peer id for a user (ok=false when unregistered).
func (p *PeerRegistry) GetUserPeerID(ctx context.Context, userID int64) (string, bool, error) {
	peerID, err := p.store.Get(ctx, p.keys.UserPeerKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "get_user").Inc()
		return "", false, fmt.Errorf("peer lookup user=%d: %w", userID, err)
	}
	return peerID, true, nil
}

// RemoveUserPeerID deregisters a user's peer id.
func (p *PeerRegistry) RemoveUserPeerID(ctx context.Context, userID int64) error {
	if err := p.store.Del(ctx, p.keys.UserPeerKey(userID)); err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "remove_user").Inc()
		return fmt.Errorf("peer deregister user=%d: %w", userID, err)
	}
	return nil
}

// SetGhostPeerID registers (or overwrites) the peer id for a session's ghost seat.
func (p *PeerRegistry) SetGhostPeerID(ctx context.Context, sessionID string, peerID string) error {
	if err := p.store.Set(ctx, p.keys.GhostPeerKey(sessionID), peerID, 0); err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "set_ghost").Inc()
		return fmt.Errorf("ghost peer register session=%s: %w", sessionID, err)
	}
	return nil
}

// GetGhostPeerID returns the ghost peer id for a session (ok=false when unregistered).
func (p *PeerRegistry) GetGhostPeerID(ctx context.Context, sessionID string) (string, bool, error) {
	peerID, err := p.store.Get(ctx, p.keys.GhostPeerKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "get_ghost").Inc()
		return "", false, fmt.Errorf("ghost peer lookup session=%s: %w", sessionID, err)
	}
	return peerID, true, nil
}

// RemoveGhostPeerID deregisters a session's ghost peer id.
func (p *PeerRegistry) RemoveGhostPeerID(ctx context.Context, sessionID string) error {
	if err := p.store.Del(ctx, p.keys.GhostPeerKey(sessionID)); err != nil {
		telemetry.RegistryErrors.WithLabelValues("peers", "remove_ghost").Inc()
		return fmt.Errorf("ghost peer deregister session=%s: %w", sessionID, err)
	}
	return nil
}
