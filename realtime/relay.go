package realtime

import (
	"context"

	"github.com/tutorhive/livehub/internal/telemetry"
)

// Device-state relay: camera and microphone toggles scoped to a session.
// Ghost callers are rejected with a revert so the requesting client can
// undo its optimistic UI change; nothing is broadcast for a rejected
// toggle, so other participants never see it.
//
// The relay deliberately performs no membership-cache check before
// broadcasting: a connection can only be joined to a session's room after
// an authorized join_call, and that is the trust boundary relied on here.

// ToggleCameraHandler relays camera toggles to the session's room.
type ToggleCameraHandler struct{}

func (h *ToggleCameraHandler) MessageType() MessageType { return MessageTypeToggleCamera }

func (h *ToggleCameraHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error {
	var req ToggleRequest
	if !decodePayload(hub, client, env, &req) {
		return nil
	}
	if rejected := rejectGhostToggle(hub, client); rejected {
		return nil
	}

	out, err := NewEvent(MessageTypeCameraToggled, client.Identity.UserID, CameraToggledEvent{
		UserID: client.Identity.UserID,
		Camera: req.Enabled,
	})
	if err != nil {
		return err
	}
	hub.Broadcast(ctx, CallRoom(req.SessionID), out)
	return nil
}

// ToggleMicHandler relays microphone toggles to the session's room.
type ToggleMicHandler struct{}

func (h *ToggleMicHandler) MessageType() MessageType { return MessageTypeToggleMic }

func (h *ToggleMicHandler) HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error {
	var req ToggleRequest
	if !decodePayload(hub, client, env, &req) {
		return nil
	}
	if rejected := rejectGhostToggle(hub, client); rejected {
		return nil
	}

	out, err := NewEvent(MessageTypeMicToggled, client.Identity.UserID, MicToggledEvent{
		UserID: client.Identity.UserID,
		Mic:    req.Enabled,
	})
	if err != nil {
		return err
	}
	hub.Broadcast(ctx, CallRoom(req.SessionID), out)
	return nil
}

func rejectGhostToggle(hub *Hub, client *Client) bool {
	if !client.Identity.Ghost {
		return false
	}
	telemetry.RelayRejections.Inc()
	hub.Revert(client, "not_authorized", "ghost participants have no devices to toggle")
	return true
}
