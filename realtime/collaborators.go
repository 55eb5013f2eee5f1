package realtime

import "context"

// ThreadLister is the room-membership collaborator: it yields the persisted
// chat-thread identifiers a user belongs to, which become the user's
// long-lived broadcast groups at connect time.
type ThreadLister interface {
	ListThreads(ctx context.Context, userID int64) ([]string, error)
}

// CallAuthorizer is the session-authorization collaborator: it decides
// whether a participant may join a live session. Consulted before the first
// membership or peer-registration write for a session.
type CallAuthorizer interface {
	CanJoin(ctx context.Context, id Identity, sessionID string) (bool, error)
}
