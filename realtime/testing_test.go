package realtime

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tutorhive/livehub/internal/store"
)

// newTestStore returns a store backed by an in-process miniredis that is
// torn down with the test.
func newTestStore(t *testing.T) *store.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewRedisStoreFromClient(client)
}

// stubThreads is a canned room-membership collaborator.
type stubThreads struct {
	byUser map[int64][]string
}

func (s *stubThreads) ListThreads(_ context.Context, userID int64) ([]string, error) {
	return s.byUser[userID], nil
}

// stubAuthorizer admits every participant unless denied is set.
type stubAuthorizer struct {
	denied map[string]bool
}

func (s *stubAuthorizer) CanJoin(_ context.Context, id Identity, sessionID string) (bool, error) {
	if id.Ghost {
		return id.SessionID == sessionID, nil
	}
	return !s.denied[sessionID], nil
}
