package model

import (
	"time"
)

// EventStatus is the lifecycle state of a calendar event. Transitions:
// scheduled -> in_progress -> completed, with scheduled/in_progress ->
// cancelled as the escape hatch. Completed and cancelled are terminal.
type EventStatus string

const (
	StatusScheduled  EventStatus = "scheduled"
	StatusInProgress EventStatus = "in_progress"
	StatusCompleted  EventStatus = "completed"
	StatusCancelled  EventStatus = "cancelled"
)

// CanTransition reports whether the status machine permits moving to next.
func (s EventStatus) CanTransition(next EventStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// EventPriority ranks a calendar event.
type EventPriority string

const (
	PriorityUrgent EventPriority = "urgent"
	PriorityHigh   EventPriority = "high"
	PriorityMedium EventPriority = "medium"
	PriorityLow    EventPriority = "low"
)

// CalendarEvent is a scheduled entry on a company calendar.
// EndTime is strictly after StartTime, enforced at creation and update.
type CalendarEvent struct {
	ID             string        `json:"id"`
	CompanyID      string        `json:"company_id"`
	OrganizerID    string        `json:"organizer_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Location       string        `json:"location,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	EventType      string        `json:"event_type"`
	Status         EventStatus   `json:"status"`
	Priority       EventPriority `json:"priority"`
	Attendees      []string      `json:"attendees"`
	ResourceIDs    []string      `json:"resource_ids"`
	RecurrenceRule string        `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CreateEventRequest is the request to create a calendar event.
type CreateEventRequest struct {
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Location       string        `json:"location,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	EventType      string        `json:"event_type,omitempty"`
	Priority       EventPriority `json:"priority,omitempty"`
	Attendees      []string      `json:"attendees,omitempty"`
	ResourceIDs    []string      `json:"resource_ids,omitempty"`
	RecurrenceRule string        `json:"recurrence_rule,omitempty"`
}

// ConflictKind classifies why two events collide.
type ConflictKind string

const (
	ConflictTime     ConflictKind = "time"
	ConflictResource ConflictKind = "resource"
	ConflictAttendee ConflictKind = "attendee"
)

// EventConflict describes an overlap between a candidate event and an
// existing one. Conflicts are advisory; they never block creation.
type EventConflict struct {
	Kind        ConflictKind `json:"kind"`
	WithEventID string       `json:"with_event_id"`
	Detail      string       `json:"detail,omitempty"`
}

// CreateEventResponse pairs the created event with any advisory conflicts.
type CreateEventResponse struct {
	Event     *CalendarEvent  `json:"event"`
	Conflicts []EventConflict `json:"conflicts,omitempty"`
}

// ViewType selects a calendar view range.
type ViewType string

const (
	ViewDay    ViewType = "day"
	ViewWeek   ViewType = "week"
	ViewMonth  ViewType = "month"
	ViewAgenda ViewType = "agenda"
)

// CalendarView is a date-range slice of a company calendar.
type CalendarView struct {
	ViewType  ViewType        `json:"view_type"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Events    []CalendarEvent `json:"events"`
}

// Slot is a derived availability window; it is never persisted.
type Slot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// CalendarStats aggregates events over a date range.
type CalendarStats struct {
	TotalEvents int            `json:"total_events"`
	ByType      map[string]int `json:"by_type"`
	ByStatus    map[string]int `json:"by_status"`
	TotalHours  float64        `json:"total_hours"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
}
