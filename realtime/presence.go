package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/internal/store"
	"github.com/tutorhive/livehub/internal/telemetry"
)

const (
	presenceOnline  = "1"
	presenceOffline = "0"

	// connLivenessTTL bounds how long presence state outlives a process
	// that died without running disconnect cleanup. Every live connection
	// refreshes it on its ping cycle, so only state owned by dead
	// processes ever ages out.
	connLivenessTTL = 5 * time.Minute
)

// PresenceRegistry tracks online/offline per authenticated user in the
// shared store. It is a pure state primitive: callers are expected to
// follow a mutation with a presence-changed broadcast.
//
// The boolean flag alone is racy when one user holds several connections
// (two browser tabs): a disconnect of either tab would flip the flag to
// offline while the other tab is still live. ConnectionOpened and
// ConnectionClosed keep a per-user live-connection counter in the store so
// the lifecycle manager only flips the flag on an actual transition.
type PresenceRegistry struct {
	store *store.RedisStore
	keys  *store.KeyBuilder
}

// NewPresenceRegistry creates a presence registry backed by the shared store.
func NewPresenceRegistry(s *store.RedisStore) *PresenceRegistry {
	return &PresenceRegistry{
		store: s,
		keys:  store.NewKeyBuilder(),
	}
}

// SetOnline marks a user online. Idempotent. The flag carries the liveness
// TTL; an expired flag reads as offline, which is the correct answer once
// every refresher is gone.
func (p *PresenceRegistry) SetOnline(ctx context.Context, userID int64) error {
	if err := p.store.Set(ctx, p.keys.PresenceKey(userID), presenceOnline, connLivenessTTL); err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "set_online").Inc()
		return fmt.Errorf("presence set online user=%d: %w", userID, err)
	}
	return nil
}

// SetOffline marks a user offline. Idempotent.
func (p *PresenceRegistry) SetOffline(ctx context.Context, userID int64) error {
	if err := p.store.Set(ctx, p.keys.PresenceKey(userID), presenceOffline, connLivenessTTL); err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "set_offline").Inc()
		return fmt.Errorf("presence set offline user=%d: %w", userID, err)
	}
	return nil
}

// IsOnline reports whether a user is online. An absent key reads as offline.
func (p *PresenceRegistry) IsOnline(ctx context.Context, userID int64) (bool, error) {
	val, err := p.store.Get(ctx, p.keys.PresenceKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "is_online").Inc()
		return false, fmt.Errorf("presence read user=%d: %w", userID, err)
	}
	return val == presenceOnline, nil
}

// ConnectionOpened records a new live connection for the user and reports
// whether this was the user's first one, i.e. whether the user just came
// online.
func (p *PresenceRegistry) ConnectionOpened(ctx context.Context, userID int64) (bool, error) {
	n, err := p.store.Incr(ctx, p.keys.ConnCountKey(userID))
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "conn_opened").Inc()
		return false, fmt.Errorf("presence connection count incr user=%d: %w", userID, err)
	}
	if err := p.store.Expire(ctx, p.keys.ConnCountKey(userID), connLivenessTTL); err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "conn_ttl").Inc()
		slogging.Get().Warn("presence connection count TTL for user %d failed: %v", userID, err)
	}
	return n == 1, nil
}

// RefreshLiveness extends the TTL of the user's presence keys. Called from
// every live connection's ping cycle; state whose refreshers all died
// expires after connLivenessTTL instead of pinning the user online forever.
func (p *PresenceRegistry) RefreshLiveness(ctx context.Context, userID int64) error {
	if err := p.store.Expire(ctx, p.keys.ConnCountKey(userID), connLivenessTTL); err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "refresh").Inc()
		return fmt.Errorf("presence count refresh user=%d: %w", userID, err)
	}
	if err := p.store.Expire(ctx, p.keys.PresenceKey(userID), connLivenessTTL); err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "refresh").Inc()
		return fmt.Errorf("presence flag refresh user=%d: %w", userID, err)
	}
	return nil
}

// ConnectionClosed records a closed connection for the user and reports
// whether it was the user's last one, i.e. whether the user just went
// offline.
func (p *PresenceRegistry) ConnectionClosed(ctx context.Context, userID int64) (bool, error) {
	n, err := p.store.Decr(ctx, p.keys.ConnCountKey(userID))
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("presence", "conn_closed").Inc()
		return false, fmt.Errorf("presence connection count decr user=%d: %w", userID, err)
	}
	if n < 0 {
		// A counter below zero means a prior increment was lost (store
		// failure during connect). Reset so the next connect starts clean.
		slogging.Get().Warn("presence connection count for user %d went negative (%d), resetting", userID, n)
		if err := p.store.Del(ctx, p.keys.ConnCountKey(userID)); err != nil {
			telemetry.RegistryErrors.WithLabelValues("presence", "conn_reset").Inc()
		}
		return true, nil
	}
	return n == 0, nil
}
