package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipAddIsIdempotent(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	evicted, err := cache.AddMember(ctx, "lesson-42", 7)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	evicted, err = cache.AddMember(ctx, "lesson-42", 7)
	require.NoError(t, err)
	assert.Empty(t, evicted)

	members, err := cache.GetMembers(ctx, "lesson-42")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, members)
}

func TestMembershipSingleSessionInvariant(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	_, err := cache.AddMember(ctx, "session-a", 7)
	require.NoError(t, err)

	evicted, err := cache.AddMember(ctx, "session-b", 7)
	require.NoError(t, err)
	assert.Equal(t, "session-a", evicted)

	oldMembers, err := cache.GetMembers(ctx, "session-a")
	require.NoError(t, err)
	assert.Empty(t, oldMembers)

	newMembers, err := cache.GetMembers(ctx, "session-b")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, newMembers)

	current, err := cache.CurrentSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "session-b", current)
}

func TestMembershipRemoveByUserID(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	_, err := cache.AddMember(ctx, "lesson-42", 7)
	require.NoError(t, err)

	sessionID, ok, err := cache.RemoveMemberByUserID(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "lesson-42", sessionID)

	// Second removal finds nothing.
	sessionID, ok, err = cache.RemoveMemberByUserID(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, sessionID)

	members, err := cache.GetMembers(ctx, "lesson-42")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMembershipIsMemberScoping(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	_, err := cache.AddMember(ctx, "lesson-42", 7)
	require.NoError(t, err)

	ok, err := cache.IsMember(ctx, "lesson-42", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.IsMember(ctx, "unrelated-session", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cache.IsMember(ctx, "lesson-42", 8)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = cache.RemoveMemberByUserID(ctx, 7)
	require.NoError(t, err)

	ok, err = cache.IsMember(ctx, "lesson-42", 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMembershipUnknownSessionIsEmptyNotError(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))

	members, err := cache.GetMembers(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMembershipMultipleMembersSorted(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	for _, id := range []int64{9, 1, 5} {
		_, err := cache.AddMember(ctx, "lesson-42", id)
		require.NoError(t, err)
	}

	members, err := cache.GetMembers(ctx, "lesson-42")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5, 9}, members)
}

func TestMembershipEvictNamedOperation(t *testing.T) {
	cache := NewMembershipCache(newTestStore(t))
	ctx := context.Background()

	_, err := cache.AddMember(ctx, "lesson-42", 7)
	require.NoError(t, err)

	require.NoError(t, cache.Evict(ctx, "lesson-42", 7))

	ok, err := cache.IsMember(ctx, "lesson-42", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := cache.CurrentSession(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, current)
}
