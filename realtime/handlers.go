package realtime

import (
	"context"

	"github.com/tutorhive/livehub/internal/slogging"
)

// JoinCallHandler admits a participant into a live session: authorization,
// membership (with eviction from a previous session), peer registration,
// room join, and the joined-call announcement.
type JoinCallHandler struct{}

func (h *JoinCallHandler) MessageType() MessageType { return MessageTypeJoinCall }

func (h *JoinCallHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error {
	var req JoinCallRequest
	if !decodePayload(hub, client, env, &req) {
		return nil
	}

	allowed, err := hub.authz.CanJoin(ctx, client.Identity, req.SessionID)
	if err != nil {
		slogging.Get().Error("authorization check for %s joining session %s failed: %v",
			client.Identity.Label(), req.SessionID, err)
		hub.Revert(client, "authorization_unavailable", "could not verify access to this session")
		return nil
	}
	if !allowed {
		hub.Revert(client, "not_authorized", "you are not a participant of this session")
		return nil
	}

	if client.Identity.Ghost {
		return h.joinAsGhost(ctx, hub, client, req)
	}

	userID := client.Identity.UserID

	evicted, err := hub.Membership.AddMember(ctx, req.SessionID, userID)
	if err != nil {
		slogging.Get().Error("adding user %d to session %s failed: %v", userID, req.SessionID, err)
		hub.Revert(client, "join_failed", "could not join the session")
		return nil
	}
	if evicted != "" {
		// The user switched sessions; tell the old room and drop out of it.
		hub.leaveRoom(client, CallRoom(evicted))
		hub.notifyMemberLeft(ctx, evicted, userID)
	}

	if err := hub.Peers.SetUserPeerID(ctx, userID, req.PeerID); err != nil {
		slogging.Get().Error("registering peer for user %d failed: %v", userID, err)
	}

	hub.joinRoom(client, CallRoom(req.SessionID))

	joined, err := NewEvent(MessageTypeUserJoinedCall, userID, UserJoinedCallEvent{PeerID: req.PeerID})
	if err != nil {
		return err
	}
	hub.Broadcast(ctx, CallRoom(req.SessionID), joined)
	return nil
}

// joinAsGhost registers the session's ghost seat. Ghosts never enter the
// membership cache: they have no user identity to index by.
func (h *JoinCallHandler) joinAsGhost(ctx context.Context, hub *Hub, client *Client, req JoinCallRequest) error {
	if client.Identity.SessionID != req.SessionID {
		hub.Revert(client, "not_authorized", "ghost identity is scoped to a different session")
		return nil
	}

	if err := hub.Peers.SetGhostPeerID(ctx, req.SessionID, req.PeerID); err != nil {
		slogging.Get().Error("registering ghost peer for session %s failed: %v", req.SessionID, err)
		hub.Revert(client, "join_failed", "could not join the session")
		return nil
	}

	hub.joinRoom(client, CallRoom(req.SessionID))

	joined, err := NewEvent(MessageTypeUserJoinedCall, 0, UserJoinedCallEvent{PeerID: req.PeerID})
	if err != nil {
		return err
	}
	hub.Broadcast(ctx, CallRoom(req.SessionID), joined)
	return nil
}

// LeaveCallHandler removes a participant from their current session
// voluntarily; the cleanup mirrors what disconnect handling does.
type LeaveCallHandler struct{}

func (h *LeaveCallHandler) MessageType() MessageType { return MessageTypeLeaveCall }

func (h *LeaveCallHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error {
	var req LeaveCallRequest
	if !decodePayload(hub, client, env, &req) {
		return nil
	}

	if client.Identity.Ghost {
		sessionID := client.Identity.SessionID
		if err := hub.Peers.RemoveGhostPeerID(ctx, sessionID); err != nil {
			slogging.Get().Error("ghost peer deregistration for session %s failed: %v", sessionID, err)
		}
		hub.leaveRoom(client, CallRoom(sessionID))
		return nil
	}

	userID := client.Identity.UserID

	sessionID, ok, err := hub.Membership.RemoveMemberByUserID(ctx, userID)
	if err != nil {
		slogging.Get().Error("leave for user %d failed: %v", userID, err)
		hub.Revert(client, "leave_failed", "could not leave the session")
		return nil
	}
	if !ok {
		// Not in any session; leaving is a no-op.
		return nil
	}

	hub.leaveRoom(client, CallRoom(sessionID))
	if err := hub.Peers.RemoveUserPeerID(ctx, userID); err != nil {
		slogging.Get().Error("peer deregistration for user %d failed: %v", userID, err)
	}
	hub.notifyMemberLeft(ctx, sessionID, userID)
	return nil
}

// ChatMessageHandler relays a chat message to a thread room the caller is
// joined to. Messages are delivery-only; nothing is persisted here.
type ChatMessageHandler struct{}

func (h *ChatMessageHandler) MessageType() MessageType { return MessageTypeChatMessage }

func (h *ChatMessageHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error {
	var req ChatMessageRequest
	if !decodePayload(hub, client, env, &req) {
		return nil
	}

	if client.Identity.Ghost {
		hub.Revert(client, "not_authorized", "ghost participants cannot chat")
		return nil
	}

	room := ThreadRoom(req.ThreadID)
	if !client.InRoom(room) {
		hub.Revert(client, "not_a_member", "you are not a member of this thread")
		return nil
	}

	out, err := NewEvent(MessageTypeChatMessage, client.Identity.UserID, ChatMessageEvent{
		ThreadID: req.ThreadID,
		Text:     req.Text,
	})
	if err != nil {
		return err
	}
	hub.Broadcast(ctx, room, out)
	return nil
}
