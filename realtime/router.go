package realtime

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/tutorhive/livehub/internal/slogging"
	"github.com/tutorhive/livehub/internal/telemetry"
)

// MessageHandler handles one client-sent message type.
type MessageHandler interface {
	HandleMessage(ctx context.Context, hub *Hub, client *Client, env Envelope) error
	MessageType() MessageType
}

// MessageRouter routes inbound WebSocket messages to their handlers.
type MessageRouter struct {
	handlers map[MessageType]MessageHandler
}

// NewMessageRouter creates a message router with the default handlers.
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{
		handlers: make(map[MessageType]MessageHandler),
	}

	router.RegisterHandler(&JoinCallHandler{})
	router.RegisterHandler(&LeaveCallHandler{})
	router.RegisterHandler(&ToggleCameraHandler{})
	router.RegisterHandler(&ToggleMicHandler{})
	router.RegisterHandler(&ChatMessageHandler{})

	return router
}

// RegisterHandler registers a message handler for a specific message type.
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.MessageType()] = handler
}

// RouteMessage parses and routes a raw inbound message. Malformed payloads
// and unknown types are dropped with a log line; the connection stays open.
func (r *MessageRouter) RouteMessage(ctx context.Context, hub *Hub, client *Client, message []byte) error {
	// Panic in a handler must not take down the read loop.
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("panic routing message from %s: %v, stack: %s",
				client.Identity.Label(), rec, debug.Stack())
		}
	}()

	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		telemetry.MessagesReceived.WithLabelValues("malformed").Inc()
		slogging.Get().Warn("dropping malformed message from %s: %v", client.Identity.Label(), err)
		return nil
	}

	telemetry.MessagesReceived.WithLabelValues(string(env.MessageType)).Inc()

	if env.MessageType.serverOnly() {
		slogging.Get().Warn("client %s sent server-only message type %q", client.Identity.Label(), env.MessageType)
		hub.Revert(client, "invalid_message_type", "message type '"+string(env.MessageType)+"' is server-only")
		return nil
	}

	handler, exists := r.handlers[env.MessageType]
	if !exists {
		slogging.Get().Warn("unsupported message type %q from %s", env.MessageType, client.Identity.Label())
		hub.Revert(client, "unsupported_message_type", "message type '"+string(env.MessageType)+"' is not supported")
		return nil
	}

	return handler.HandleMessage(ctx, hub, client, env)
}

// decodePayload unmarshals and validates a typed request payload.
// It returns false after notifying the caller when the payload is invalid.
func decodePayload[T interface{ Validate() error }](hub *Hub, client *Client, env Envelope, out *T) bool {
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			telemetry.MessagesReceived.WithLabelValues("malformed").Inc()
			slogging.Get().Warn("dropping %s with malformed payload from %s: %v",
				env.MessageType, client.Identity.Label(), err)
			return false
		}
	}
	if err := (*out).Validate(); err != nil {
		slogging.Get().Warn("dropping invalid %s from %s: %v", env.MessageType, client.Identity.Label(), err)
		hub.Revert(client, "invalid_payload", err.Error())
		return false
	}
	return true
}
