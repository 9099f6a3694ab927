// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks currently open client sockets.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cardroom",
		Name:      "connections_active",
		Help:      "Open WebSocket connections.",
	})

	// MessagesReceived counts inbound frames by action.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardroom",
		Name:      "messages_received_total",
		Help:      "Inbound client frames by action.",
	}, []string{"action"})

	// HandsCompleted counts HAND_END events by room.
	HandsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardroom",
		Name:      "hands_completed_total",
		Help:      "Completed hands by room.",
	}, []string{"game_id"})

	// ActionsProcessed counts accepted player actions by type.
	ActionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardroom",
		Name:      "actions_processed_total",
		Help:      "Accepted betting actions by type.",
	}, []string{"type"})

	// ActionTimeouts counts actions submitted on the timer's behalf.
	ActionTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cardroom",
		Name:      "action_timeouts_total",
		Help:      "Player actions defaulted after clock expiry.",
	})

	// RoomsActive tracks rooms with a running executor.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cardroom",
		Name:      "rooms_active",
		Help:      "Rooms with a live executor goroutine.",
	})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler { return promhttp.Handler() }
