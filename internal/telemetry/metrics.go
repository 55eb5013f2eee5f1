// Package telemetry exposes Prometheus instruments for the real-time
// coordinator: connection lifecycle, message traffic, broadcast fan-out,
// and registry (shared store) failures.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks currently open WebSocket connections per role.
	ConnectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livehub_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	}, []string{"role"})

	// ConnectionsTotal counts connection attempts by outcome
	// (attached, refused).
	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livehub_websocket_connections_total",
		Help: "Total WebSocket connection attempts by outcome",
	}, []string{"outcome"})

	// MessagesReceived counts inbound messages by type, including dropped
	// malformed payloads (type "malformed").
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livehub_messages_received_total",
		Help: "Inbound WebSocket messages by message type",
	}, []string{"message_type"})

	// BroadcastDeliveries counts per-recipient deliveries by event type.
	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livehub_broadcast_deliveries_total",
		Help: "Per-recipient broadcast deliveries by event type",
	}, []string{"event"})

	// BroadcastDropped counts recipients disconnected because their send
	// buffer was full when a broadcast arrived.
	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livehub_broadcast_dropped_total",
		Help: "Broadcast deliveries dropped due to a full client send buffer",
	})

	// RegistryErrors counts failed shared-store operations by registry and
	// operation so partial-cleanup incidents can be reconstructed.
	RegistryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livehub_registry_errors_total",
		Help: "Failed shared state store operations by registry and operation",
	}, []string{"registry", "operation"})

	// RelayRejections counts device toggles rejected before broadcast.
	RelayRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livehub_relay_rejections_total",
		Help: "Device state toggles rejected and reverted to the caller",
	})
)
