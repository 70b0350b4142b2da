// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RateLimitDecisions tracks rate limiter allow/reject outcomes.
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions by outcome",
		},
		[]string{"outcome"},
	)

	// RoomsActive tracks currently live collaboration rooms.
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_rooms_active",
			Help: "Number of active collaboration rooms",
		},
	)

	// RoomUsersActive tracks users joined across all rooms.
	RoomUsersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_room_users_active",
			Help: "Number of users joined across all rooms",
		},
	)

	// UpdatesTotal tracks accepted realtime updates.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_updates_total",
			Help: "Total realtime updates accepted",
		},
		[]string{"company_id", "change_type"},
	)

	// EvictionsTotal tracks users evicted for inactivity.
	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_inactive_evictions_total",
			Help: "Total users evicted for inactivity",
		},
	)

	// BroadcastFailures tracks broadcast publishes that errored.
	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_broadcast_failures_total",
			Help: "Total broadcast publishes that failed",
		},
	)

	// CalendarEventsTotal tracks calendar events created.
	CalendarEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_events_total",
			Help: "Total calendar events created",
		},
		[]string{"company_id", "event_type"},
	)

	// CalendarConflictsTotal tracks advisory conflicts detected at creation.
	CalendarConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_conflicts_total",
			Help: "Advisory calendar conflicts detected",
		},
		[]string{"kind"},
	)

	// StreamMessages tracks messages in the collaboration stream.
	StreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRateLimitDecision records one limiter decision.
func RecordRateLimitDecision(allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	RateLimitDecisions.WithLabelValues(outcome).Inc()
}

// RecordUpdate records an accepted realtime update.
func RecordUpdate(companyID, changeType string) {
	UpdatesTotal.WithLabelValues(companyID, changeType).Inc()
}

// RecordCalendarEvent records a created calendar event.
func RecordCalendarEvent(companyID, eventType string) {
	CalendarEventsTotal.WithLabelValues(companyID, eventType).Inc()
}

// RecordConflict records one advisory calendar conflict.
func RecordConflict(kind string) {
	CalendarConflictsTotal.WithLabelValues(kind).Inc()
}

// SetRoomCounts sets the active room and user gauges.
func SetRoomCounts(rooms, users int) {
	RoomsActive.Set(float64(rooms))
	RoomUsersActive.Set(float64(users))
}
