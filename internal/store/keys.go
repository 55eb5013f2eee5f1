package store

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyBuilder provides methods to build Redis keys following the defined patterns
type KeyBuilder struct{}

// NewKeyBuilder creates a new Redis key builder
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// Presence keys

// PresenceKey builds the online flag key for a user
func (b *KeyBuilder) PresenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}

// ConnCountKey builds the live-connection counter key for a user
func (b *KeyBuilder) ConnCountKey(userID int64) string {
	return fmt.Sprintf("conns:%d", userID)
}

// Call membership keys

// CallMembersKey builds the member-set key for a live session
func (b *KeyBuilder) CallMembersKey(sessionID string) string {
	return fmt.Sprintf("call:members:%s", sessionID)
}

// CallByUserKey builds the reverse-index key mapping a user to their current session
func (b *KeyBuilder) CallByUserKey(userID int64) string {
	return fmt.Sprintf("call:user:%d", userID)
}

// Peer signaling keys

// UserPeerKey builds the peer identifier key for a persistent participant
func (b *KeyBuilder) UserPeerKey(userID int64) string {
	return fmt.Sprintf("peer:user:%d", userID)
}

// GhostPeerKey builds the peer identifier key for a session-scoped ghost participant
func (b *KeyBuilder) GhostPeerKey(sessionID string) string {
	return fmt.Sprintf("peer:ghost:%s", sessionID)
}

// ParseCallMembersKey parses a call member-set key into its session id
func (b *KeyBuilder) ParseCallMembersKey(key string) (string, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != "call" || parts[1] != "members" {
		return "", fmt.Errorf("invalid call members key format: %s", key)
	}
	return parts[2], nil
}

// ParsePresenceKey parses a presence key into its user id
func (b *KeyBuilder) ParsePresenceKey(key string) (int64, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 || parts[0] != "presence" {
		return 0, fmt.Errorf("invalid presence key format: %s", key)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id in presence key %s: %w", key, err)
	}
	return userID, nil
}
