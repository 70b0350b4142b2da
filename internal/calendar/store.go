package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/collabcore/realtime-platform/internal/model"
)

// MemoryStore is an in-memory EventStore (would be replaced with a
// database in production).
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*model.CalendarEvent
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]*model.CalendarEvent),
	}
}

// GetEvents returns the company's events overlapping [start, end),
// ordered by start time.
func (s *MemoryStore) GetEvents(ctx context.Context, companyID string, start, end time.Time) ([]model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CalendarEvent
	for _, ev := range s.events {
		if ev.CompanyID != companyID {
			continue
		}
		if overlaps(start, end, ev.StartTime, ev.EndTime) {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// SaveEvent stores a new event.
func (s *MemoryStore) SaveEvent(ctx context.Context, event *model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *event
	s.events[event.ID] = &stored
	return nil
}

// GetEvent returns the company's event by id, or ErrEventNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, companyID, eventID string) (*model.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok || ev.CompanyID != companyID {
		return nil, ErrEventNotFound
	}
	out := *ev
	return &out, nil
}

// UpdateEvent replaces a stored event.
func (s *MemoryStore) UpdateEvent(ctx context.Context, event *model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; !ok {
		return ErrEventNotFound
	}
	stored := *event
	s.events[event.ID] = &stored
	return nil
}
