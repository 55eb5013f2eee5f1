package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a message in the closed event taxonomy. The
// taxonomy is split into client-sent requests and server-sent events;
// clients sending a server-only type commit a protocol violation and get
// an error message back.
type MessageType string

const (
	// Client -> server requests
	MessageTypeJoinCall     MessageType = "join_call"
	MessageTypeLeaveCall    MessageType = "leave_call"
	MessageTypeToggleCamera MessageType = "toggle_camera"
	MessageTypeToggleMic    MessageType = "toggle_mic"
	MessageTypeChatMessage  MessageType = "chat_message"

	// Server -> client events
	MessageTypeUserStatusChanged MessageType = "user_status_changed"
	MessageTypeMemberLeft        MessageType = "member_left_session"
	MessageTypeCameraToggled     MessageType = "camera_toggled"
	MessageTypeMicToggled        MessageType = "mic_toggled"
	MessageTypeUserJoinedCall    MessageType = "user_joined_call"
	MessageTypeError             MessageType = "error"
)

// serverOnly reports whether clients are forbidden from sending this type.
func (t MessageType) serverOnly() bool {
	switch t {
	case MessageTypeUserStatusChanged, MessageTypeMemberLeft,
		MessageTypeCameraToggled, MessageTypeMicToggled,
		MessageTypeUserJoinedCall, MessageTypeError:
		return true
	}
	return false
}

// Envelope is the wire shape of every message in both directions.
type Envelope struct {
	MessageType MessageType     `json:"message_type"`
	UserID      int64           `json:"user_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds a server event envelope with a marshaled payload.
func NewEvent(msgType MessageType, userID int64, data any) (Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = b
	}
	return Envelope{
		MessageType: msgType,
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
		Data:        raw,
	}, nil
}

// Client request payloads. Each carries its own validation; a request that
// fails validation is dropped at the handler boundary.

// JoinCallRequest asks to enter a live session and register for signaling.
type JoinCallRequest struct {
	SessionID string `json:"session_id"`
	PeerID    string `json:"peer_id"`
}

func (r JoinCallRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("join_call: session_id is required")
	}
	if r.PeerID == "" {
		return fmt.Errorf("join_call: peer_id is required")
	}
	return nil
}

// LeaveCallRequest asks to leave the caller's current live session.
type LeaveCallRequest struct{}

func (r LeaveCallRequest) Validate() error { return nil }

// ToggleRequest flips a device flag within a session.
type ToggleRequest struct {
	SessionID string `json:"session_id"`
	Enabled   bool   `json:"enabled"`
}

func (r ToggleRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("toggle: session_id is required")
	}
	return nil
}

// ChatMessageRequest delivers a chat message to a thread the caller belongs to.
type ChatMessageRequest struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
}

func (r ChatMessageRequest) Validate() error {
	if r.ThreadID == "" {
		return fmt.Errorf("chat_message: thread_id is required")
	}
	if r.Text == "" {
		return fmt.Errorf("chat_message: text is required")
	}
	return nil
}

// Server event payloads.

// UserStatusChangedEvent announces a presence transition to the user's threads.
type UserStatusChangedEvent struct {
	UserID int64 `json:"user_id"`
	Online bool  `json:"online"`
}

// MemberLeftEvent announces that a participant left a live session.
type MemberLeftEvent struct {
	UserID int64 `json:"user_id"`
}

// CameraToggledEvent announces a camera state change within a session.
type CameraToggledEvent struct {
	UserID int64 `json:"user_id"`
	Camera bool  `json:"camera"`
}

// MicToggledEvent announces a microphone state change within a session.
type MicToggledEvent struct {
	UserID int64 `json:"user_id"`
	Mic    bool  `json:"mic"`
}

// UserJoinedCallEvent announces a new participant's peer id for signaling.
type UserJoinedCallEvent struct {
	PeerID string `json:"peer_id"`
}

// ChatMessageEvent carries a delivered chat message.
type ChatMessageEvent struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
}

// ErrorEvent is sent to a single client when its request was rejected;
// reverted toggles ride on this so the optimistic client UI can undo.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
