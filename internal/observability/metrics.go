package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperationsTotal counts remote store operations by backend and operation.
	StoreOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eslive_store_operations_total",
		Help: "Total number of remote store operations by backend and operation",
	}, []string{"backend", "operation"})

	// StoreErrorsTotal counts remote store errors by backend and operation.
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eslive_store_errors_total",
		Help: "Total number of remote store errors by backend and operation",
	}, []string{"backend", "operation"})

	// StoreSubscriptions is the gauge of live store subscriptions.
	StoreSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eslive_store_subscriptions",
		Help: "Number of live remote store subscriptions by backend",
	}, []string{"backend"})

	// ChatMessagesTotal counts chat messages by outcome.
	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eslive_chat_messages_total",
		Help: "Total number of chat messages by outcome",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eslive_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by hub and type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eslive_websocket_events_total",
		Help: "Total WebSocket events by hub and event type",
	}, []string{"hub", "event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eslive_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
