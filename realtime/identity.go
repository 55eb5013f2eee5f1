// Package realtime implements the presence, session-membership, and
// signaling coordinator behind live lessons and chat. All cross-process
// state lives in the shared Redis store; this package owns only the
// per-connection lifecycle and the broadcast fan-out.
package realtime

import "fmt"

// Role is the participant role resolved by the identity collaborator.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleGhost   Role = "ghost"
)

// Identity is the resolved participant identity for one connection.
// Persistent participants carry a UserID stable across connections.
// Ghost participants (proctor/system seats) have no user identity and no
// presence concept; they are scoped to a single session via SessionID.
type Identity struct {
	UserID    int64
	Role      Role
	Ghost     bool
	SessionID string // ghost scope; empty for persistent participants
}

// Label returns a loggable identifier for the participant.
func (id Identity) Label() string {
	if id.Ghost {
		return fmt.Sprintf("ghost[%s]", id.SessionID)
	}
	return fmt.Sprintf("user[%d]", id.UserID)
}

// ThreadRoom returns the broadcast group name for a chat thread.
func ThreadRoom(threadID string) string {
	return "thread:" + threadID
}

// CallRoom returns the broadcast group name for a live session.
func CallRoom(sessionID string) string {
	return "call:" + sessionID
}
