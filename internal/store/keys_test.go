package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPatterns(t *testing.T) {
	b := NewKeyBuilder()

	assert.Equal(t, "presence:7", b.PresenceKey(7))
	assert.Equal(t, "conns:7", b.ConnCountKey(7))
	assert.Equal(t, "call:members:lesson-42", b.CallMembersKey("lesson-42"))
	assert.Equal(t, "call:user:7", b.CallByUserKey(7))
	assert.Equal(t, "peer:user:7", b.UserPeerKey(7))
	assert.Equal(t, "peer:ghost:lesson-42", b.GhostPeerKey("lesson-42"))
}

func TestParseCallMembersKey(t *testing.T) {
	b := NewKeyBuilder()

	sessionID, err := b.ParseCallMembersKey("call:members:lesson-42")
	require.NoError(t, err)
	assert.Equal(t, "lesson-42", sessionID)

	_, err = b.ParseCallMembersKey("presence:7")
	assert.Error(t, err)

	_, err = b.ParseCallMembersKey("call:user:7")
	assert.Error(t, err)
}

func TestParsePresenceKey(t *testing.T) {
	b := NewKeyBuilder()

	userID, err := b.ParsePresenceKey("presence:7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)

	_, err = b.ParsePresenceKey("conns:7")
	assert.Error(t, err)

	_, err = b.ParsePresenceKey("presence:not-a-number")
	assert.Error(t, err)
}
