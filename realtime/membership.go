package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/internal/store"
	"github.com/tutorhive/livehub/internal/telemetry"
)

// MembershipCache tracks which participants are inside which live session.
//
// Two indexes are kept in the shared store: the forward member set
// (call:members:{session} -> set of user ids) and the reverse index
// (call:user:{user} -> session id). The reverse index is the single source
// of truth for "current session" and makes disconnect cleanup O(1), which
// matters because disconnects are frequent and arrive unordered relative to
// everything else. The two writes are not transactional; a store failure
// between them can leave the indexes briefly disagreeing, which the next
// lifecycle event corrects.
//
// A user can be in at most one live session. Adding a user who is recorded
// in a different session evicts them from the old one first.
type MembershipCache struct {
	store *store.RedisStore
	keys  *store.KeyBuilder
}

// NewMembershipCache creates a membership cache backed by the shared store.
func NewMembershipCache(s *store.RedisStore) *MembershipCache {
	return &MembershipCache{
		store: s,
		keys:  store.NewKeyBuilder(),
	}
}

// AddMember inserts userID into the session's member set and points the
// reverse index at sessionID. Adding an already-present pair is a no-op.
// When the user was recorded in a different session, that session is
// returned as evicted ("" otherwise) so the caller can notify its room.
func (m *MembershipCache) AddMember(ctx context.Context, sessionID string, userID int64) (evicted string, err error) {
	current, err := m.CurrentSession(ctx, userID)
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "add_lookup").Inc()
		return "", err
	}
	if current == sessionID {
		// Set-add below is idempotent anyway; skip the rewrite entirely.
		return "", nil
	}
	if current != "" {
		if err := m.Evict(ctx, current, userID); err != nil {
			telemetry.RegistryErrors.WithLabelValues("membership", "evict").Inc()
			return "", err
		}
		evicted = current
	}

	if err := m.store.SAdd(ctx, m.keys.CallMembersKey(sessionID), userID); err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "add_forward").Inc()
		return evicted, fmt.Errorf("membership add user=%d session=%s: %w", userID, sessionID, err)
	}
	if err := m.store.Set(ctx, m.keys.CallByUserKey(userID), sessionID, 0); err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "add_reverse").Inc()
		return evicted, fmt.Errorf("membership reverse index user=%d session=%s: %w", userID, sessionID, err)
	}
	return evicted, nil
}

// Evict removes userID from sessionID's member set and clears the reverse
// index. It is the named form of the old-session removal that AddMember
// performs when a user switches sessions.
func (m *MembershipCache) Evict(ctx context.Context, sessionID string, userID int64) error {
	if err := m.store.SRem(ctx, m.keys.CallMembersKey(sessionID), userID); err != nil {
		return fmt.Errorf("membership evict user=%d session=%s: %w", userID, sessionID, err)
	}
	if err := m.store.Del(ctx, m.keys.CallByUserKey(userID)); err != nil {
		return fmt.Errorf("membership evict reverse index user=%d: %w", userID, err)
	}
	return nil
}

// GetMembers returns the member set of a session, sorted for stable output.
// An unknown session yields an empty slice, not an error.
func (m *MembershipCache) GetMembers(ctx context.Context, sessionID string) ([]int64, error) {
	raw, err := m.store.SMembers(ctx, m.keys.CallMembersKey(sessionID))
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "get_members").Inc()
		return nil, fmt.Errorf("membership members session=%s: %w", sessionID, err)
	}
	members := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			slogging.Get().Warn("membership set for session %s holds non-numeric member %q, skipping", sessionID, s)
			continue
		}
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members, nil
}

// IsMember reports whether userID is currently a member of sessionID.
func (m *MembershipCache) IsMember(ctx context.Context, sessionID string, userID int64) (bool, error) {
	ok, err := m.store.SIsMember(ctx, m.keys.CallMembersKey(sessionID), userID)
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "is_member").Inc()
		return false, fmt.Errorf("membership check user=%d session=%s: %w", userID, sessionID, err)
	}
	return ok, nil
}

// CurrentSession returns the session the user is recorded in, or "" when
// the user has none.
func (m *MembershipCache) CurrentSession(ctx context.Context, userID int64) (string, error) {
	sessionID, err := m.store.Get(ctx, m.keys.CallByUserKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("membership reverse lookup user=%d: %w", userID, err)
	}
	return sessionID, nil
}

// RemoveMemberByUserID removes the user from whatever session the reverse
// index records and returns that session (ok=false when the user had none).
// This is the only removal path disconnect handling uses: a departing
// client is identified by user id, not by session id.
func (m *MembershipCache) RemoveMemberByUserID(ctx context.Context, userID int64) (sessionID string, ok bool, err error) {
	sessionID, err = m.CurrentSession(ctx, userID)
	if err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "remove_lookup").Inc()
		return "", false, err
	}
	if sessionID == "" {
		return "", false, nil
	}
	if err := m.Evict(ctx, sessionID, userID); err != nil {
		telemetry.RegistryErrors.WithLabelValues("membership", "remove").Inc()
		return "", false, err
	}
	return sessionID, true, nil
}
