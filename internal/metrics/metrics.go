// Package metrics exposes the ambient Prometheus gauges/counters this
// module emits, following the counter-vec style the teacher registers in
// its rate-limit middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ludoarena_active_rooms",
		Help: "Number of rooms currently tracked by the room registry.",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ludoarena_active_connections",
		Help: "Number of currently bound transport connections.",
	})

	InboundEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludoarena_inbound_events_total",
		Help: "Inbound events processed, labeled by event type.",
	}, []string{"event"})

	MalformedPayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludoarena_malformed_payloads_total",
		Help: "Inbound payloads dropped for failing to parse, labeled by event type.",
	}, []string{"event"})

	TurnTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ludoarena_turn_timeouts_total",
		Help: "Turn-timer escalations fired across all rooms.",
	})

	SettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ludoarena_settlements_total",
		Help: "Games settled (transitions to FINISHED).",
	})

	StoreDemotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludoarena_store_demotions_total",
		Help: "User-store operations that fell back to the in-memory backend, labeled by operation.",
	}, []string{"op"})
)
