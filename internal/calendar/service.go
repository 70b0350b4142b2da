// Package calendar implements the scheduling engine: event creation
// with advisory conflict detection, calendar views, availability slot
// search, meeting suggestion, iCalendar export, and range statistics.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/logger"
	"github.com/collabcore/realtime-platform/pkg/metrics"
)

// ErrEventNotFound is returned when the addressed event does not exist
// for the company.
var ErrEventNotFound = errors.New("calendar: event not found")

// ValidationError reports invalid event input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("calendar: invalid %s: %s", e.Field, e.Reason)
}

// EventStore is the persistence boundary for calendar events.
type EventStore interface {
	GetEvents(ctx context.Context, companyID string, start, end time.Time) ([]model.CalendarEvent, error)
	SaveEvent(ctx context.Context, event *model.CalendarEvent) error
	GetEvent(ctx context.Context, companyID, eventID string) (*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, event *model.CalendarEvent) error
}

// Config carries the scheduling constants. Business hours and the slot
// step are configuration, not literals.
type Config struct {
	BusinessStartHour int
	BusinessEndHour   int
	SlotStep          time.Duration
	AgendaSpanDays    int
	MaxSuggestions    int
}

// DefaultConfig returns 9-to-17 business hours with 30-minute slots.
func DefaultConfig() Config {
	return Config{
		BusinessStartHour: 9,
		BusinessEndHour:   17,
		SlotStep:          30 * time.Minute,
		AgendaSpanDays:    30,
		MaxSuggestions:    5,
	}
}

// Service is the calendar scheduling engine.
type Service struct {
	store  EventStore
	logger *logger.Logger
	cfg    Config
	now    func() time.Time
}

// NewService creates a calendar service. A nil clock means time.Now.
func NewService(store EventStore, log *logger.Logger, cfg Config, now func() time.Time) *Service {
	if cfg.BusinessStartHour == 0 && cfg.BusinessEndHour == 0 {
		cfg = DefaultConfig()
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.AgendaSpanDays <= 0 {
		cfg.AgendaSpanDays = 30
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, logger: log, cfg: cfg, now: now}
}

// CreateEvent validates and stores a calendar event. Conflicts with
// existing events are detected and logged as warnings but never block
// creation; they are returned alongside the event so callers can
// surface them.
func (s *Service) CreateEvent(ctx context.Context, companyID, organizerID string, req model.CreateEventRequest) (*model.CreateEventResponse, error) {
	if req.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.StartTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Reason: "must be set"}
	}
	if req.EndTime.IsZero() {
		return nil, &ValidationError{Field: "end_time", Reason: "must be set"}
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	now := s.now()
	event := &model.CalendarEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		CompanyID:      companyID,
		OrganizerID:    organizerID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		EventType:      req.EventType,
		Status:         model.StatusScheduled,
		Priority:       req.Priority,
		Attendees:      req.Attendees,
		ResourceIDs:    req.ResourceIDs,
		RecurrenceRule: req.RecurrenceRule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if event.EventType == "" {
		event.EventType = "event"
	}
	if event.Priority == "" {
		event.Priority = model.PriorityMedium
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	if event.ResourceIDs == nil {
		event.ResourceIDs = []string{}
	}

	conflicts := s.detectConflicts(ctx, event)
	for _, c := range conflicts {
		metrics.RecordConflict(string(c.Kind))
		s.logger.Warn("event conflict detected",
			zap.String("company_id", companyID),
			zap.String("event_title", event.Title),
			zap.String("kind", string(c.Kind)),
			zap.String("with_event_id", c.WithEventID),
		)
	}

	if err := s.store.SaveEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	metrics.RecordCalendarEvent(companyID, event.EventType)

	return &model.CreateEventResponse{Event: event, Conflicts: conflicts}, nil
}

// detectConflicts fetches the company's events overlapping the
// candidate and classifies collisions. Store failures degrade to no
// conflicts; detection is advisory.
func (s *Service) detectConflicts(ctx context.Context, event *model.CalendarEvent) []model.EventConflict {
	existing, err := s.store.GetEvents(ctx, event.CompanyID, event.StartTime, event.EndTime)
	if err != nil {
		s.logger.Warn("conflict check fetch failed",
			zap.String("company_id", event.CompanyID),
			zap.Error(err),
		)
		return nil
	}
	attendees := append([]string{event.OrganizerID}, event.Attendees...)
	return findConflicts(existing, event.StartTime, event.EndTime, attendees, event.ResourceIDs)
}

// TransitionStatus moves an event through its status machine:
// scheduled -> in_progress -> completed, with cancellation allowed from
// the two non-terminal states.
func (s *Service) TransitionStatus(ctx context.Context, companyID, eventID string, next model.EventStatus) (*model.CalendarEvent, error) {
	event, err := s.store.GetEvent(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanTransition(next) {
		return nil, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot transition from %s to %s", event.Status, next),
		}
	}
	event.Status = next
	event.UpdatedAt = s.now()
	if err := s.store.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// View derives the date range for a calendar view and fetches its
// events. Weeks start on Sunday.
func (s *Service) View(ctx context.Context, companyID string, viewType model.ViewType, date time.Time) (*model.CalendarView, error) {
	var start, end time.Time
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	switch viewType {
	case model.ViewDay:
		start = midnight
		end = midnight.AddDate(0, 0, 1)
	case model.ViewWeek:
		start = midnight.AddDate(0, 0, -int(midnight.Weekday()))
		end = start.AddDate(0, 0, 7)
	case model.ViewMonth:
		start = time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
		end = start.AddDate(0, 1, 0)
	case model.ViewAgenda:
		start = date
		end = date.AddDate(0, 0, s.cfg.AgendaSpanDays)
	default:
		return nil, &ValidationError{Field: "view_type", Reason: "unknown view type"}
	}

	events, err := s.store.GetEvents(ctx, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return &model.CalendarView{
		ViewType:  viewType,
		StartDate: start,
		EndDate:   end,
		Events:    events,
	}, nil
}

// FindAvailableSlots enumerates candidate windows between startDate and
// endDate, stepping by the configured slot size within business hours,
// and marks each window available when it has no conflicts for the
// given attendees and resources. Linear enumeration, not an interval
// tree; fine at this scale.
func (s *Service) FindAvailableSlots(ctx context.Context, companyID string, startDate, endDate time.Time, duration time.Duration, attendees, resources []string) ([]model.Slot, error) {
	if duration <= 0 {
		return nil, &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if !endDate.After(startDate) {
		return nil, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}

	existing, err := s.store.GetEvents(ctx, companyID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	var slots []model.Slot
	day := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())

	for ; day.Before(endDate); day = day.AddDate(0, 0, 1) {
		cursor := time.Date(day.Year(), day.Month(), day.Day(), s.cfg.BusinessStartHour, 0, 0, 0, day.Location())
		for {
			slotEnd := cursor.Add(duration)
			if !s.withinBusinessHours(cursor, slotEnd) {
				break
			}
			if cursor.Before(startDate) || slotEnd.After(endDate) {
				cursor = cursor.Add(s.cfg.SlotStep)
				continue
			}

			conflicts := findConflicts(existing, cursor, slotEnd, attendees, resources)
			slot := model.Slot{
				StartTime: cursor,
				EndTime:   slotEnd,
				Available: len(conflicts) == 0,
			}
			if len(conflicts) > 0 {
				slot.Reason = conflicts[0].Detail
				if slot.Reason == "" {
					slot.Reason = "time conflict"
				}
			}
			slots = append(slots, slot)
			cursor = cursor.Add(s.cfg.SlotStep)
		}
	}
	return slots, nil
}

// withinBusinessHours reports whether [start, end] fits the configured
// business day. An end falling exactly on the closing hour is allowed;
// a slot spilling into the next day is not.
func (s *Service) withinBusinessHours(start, end time.Time) bool {
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		return false
	}
	if start.Hour() < s.cfg.BusinessStartHour {
		return false
	}
	if end.Hour() > s.cfg.BusinessEndHour {
		return false
	}
	if end.Hour() == s.cfg.BusinessEndHour && (end.Minute() > 0 || end.Second() > 0) {
		return false
	}
	return true
}

// SuggestMeetingTimes returns up to the configured number of available
// slots, optionally filtered to a preferred starting hour.
func (s *Service) SuggestMeetingTimes(ctx context.Context, companyID string, startDate, endDate time.Time, duration time.Duration, attendees, resources []string, preferredHour *int) ([]model.Slot, error) {
	slots, err := s.FindAvailableSlots(ctx, companyID, startDate, endDate, duration, attendees, resources)
	if err != nil {
		return nil, err
	}

	var suggestions []model.Slot
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		if preferredHour != nil && slot.StartTime.Hour() != *preferredHour {
			continue
		}
		suggestions = append(suggestions, slot)
		if len(suggestions) >= s.cfg.MaxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// ScheduleMeetingAutomatic creates an event in the first available slot
// of the range. Returns ErrEventNotFound-style validation failure when
// no slot is free.
func (s *Service) ScheduleMeetingAutomatic(ctx context.Context, companyID, organizerID, title string, startDate, endDate time.Time, duration time.Duration, attendees, resources []string) (*model.CalendarEvent, error) {
	suggestions, err := s.SuggestMeetingTimes(ctx, companyID, startDate, endDate, duration, attendees, resources, nil)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return nil, &ValidationError{Field: "date_range", Reason: "no available slot in range"}
	}

	resp, err := s.CreateEvent(ctx, companyID, organizerID, model.CreateEventRequest{
		Title:       title,
		StartTime:   suggestions[0].StartTime,
		EndTime:     suggestions[0].EndTime,
		EventType:   "meeting",
		Attendees:   attendees,
		ResourceIDs: resources,
	})
	if err != nil {
		return nil, err
	}
	return resp.Event, nil
}

// Stats aggregates the company's events over a range by type and
// status, summing total duration in hours.
func (s *Service) Stats(ctx context.Context, companyID string, startDate, endDate time.Time) (*model.CalendarStats, error) {
	events, err := s.store.GetEvents(ctx, companyID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	stats := &model.CalendarStats{
		TotalEvents: len(events),
		ByType:      make(map[string]int),
		ByStatus:    make(map[string]int),
		StartDate:   startDate,
		EndDate:     endDate,
	}
	for i := range events {
		ev := &events[i]
		stats.ByType[ev.EventType]++
		stats.ByStatus[string(ev.Status)]++
		stats.TotalHours += ev.EndTime.Sub(ev.StartTime).Hours()
	}
	return stats, nil
}
