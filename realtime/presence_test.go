package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/livehub/internal/store"
)

func TestPresenceRoundTrip(t *testing.T) {
	presence := NewPresenceRegistry(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, presence.SetOnline(ctx, 7))
	online, err := presence.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, presence.SetOffline(ctx, 7))
	online, err = presence.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresenceAbsentReadsOffline(t *testing.T) {
	presence := NewPresenceRegistry(newTestStore(t))

	online, err := presence.IsOnline(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresenceSetOnlineIsIdempotent(t *testing.T) {
	presence := NewPresenceRegistry(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, presence.SetOnline(ctx, 7))
	require.NoError(t, presence.SetOnline(ctx, 7))

	online, err := presence.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)
}

// Two tabs for the same user: closing one connection must not report the
// user offline while the other is still live.
func TestPresenceConnectionRefCount(t *testing.T) {
	presence := NewPresenceRegistry(newTestStore(t))
	ctx := context.Background()

	cameOnline, err := presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline, "first connection brings the user online")

	cameOnline, err = presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	assert.False(t, cameOnline, "second tab does not re-transition")

	wentOffline, err := presence.ConnectionClosed(ctx, 7)
	require.NoError(t, err)
	assert.False(t, wentOffline, "one tab closing leaves the user online")

	wentOffline, err = presence.ConnectionClosed(ctx, 7)
	require.NoError(t, err)
	assert.True(t, wentOffline, "last connection closing takes the user offline")
}

func newExpiringPresence(t *testing.T) (*PresenceRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPresenceRegistry(store.NewRedisStoreFromClient(client)), mr
}

// A process that dies without running disconnect cleanup leaves its
// increments behind; both the counter and the flag must age out on their
// own so the user does not stay online forever.
func TestStaleConnectionCounterExpires(t *testing.T) {
	presence, mr := newExpiringPresence(t)
	ctx := context.Background()

	cameOnline, err := presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	require.True(t, cameOnline)
	require.NoError(t, presence.SetOnline(ctx, 7))

	mr.FastForward(connLivenessTTL + time.Second)

	online, err := presence.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)

	cameOnline, err = presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline, "fresh connect after expiry transitions online again")
}

func TestRefreshLivenessKeepsPresenceAlive(t *testing.T) {
	presence, mr := newExpiringPresence(t)
	ctx := context.Background()

	_, err := presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, presence.SetOnline(ctx, 7))

	mr.FastForward(connLivenessTTL / 2)
	require.NoError(t, presence.RefreshLiveness(ctx, 7))
	mr.FastForward(connLivenessTTL/2 + time.Second)

	online, err := presence.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online, "refreshed state must survive past the original TTL")

	wentOffline, err := presence.ConnectionClosed(ctx, 7)
	require.NoError(t, err)
	assert.True(t, wentOffline)
}

func TestPresenceNegativeCountResets(t *testing.T) {
	presence := NewPresenceRegistry(newTestStore(t))
	ctx := context.Background()

	// A close without a recorded open (lost increment) still reports a
	// transition and leaves the counter clean for the next connect.
	wentOffline, err := presence.ConnectionClosed(ctx, 7)
	require.NoError(t, err)
	assert.True(t, wentOffline)

	cameOnline, err := presence.ConnectionOpened(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline)
}
