package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	log := &logger.Logger{Logger: zap.NewNop()}
	now := func() time.Time {
		return time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	}
	return NewService(store, log, DefaultConfig(), now), store
}

func mustCreate(t *testing.T, svc *Service, companyID string, req model.CreateEventRequest) *model.CalendarEvent {
	t.Helper()
	resp, err := svc.CreateEvent(context.Background(), companyID, "organizer", req)
	require.NoError(t, err)
	return resp.Event
}

func TestCreateEvent_DefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	resp, err := svc.CreateEvent(ctx, "c1", "organizer", model.CreateEventRequest{
		Title:     "Standup",
		StartTime: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, resp.Event.Status)
	assert.Equal(t, model.PriorityMedium, resp.Event.Priority)
	assert.Equal(t, "event", resp.Event.EventType)
	assert.NotEmpty(t, resp.Event.ID)
	assert.Empty(t, resp.Event.Attendees)
	assert.Empty(t, resp.Event.ResourceIDs)

	tests := []struct {
		name string
		req  model.CreateEventRequest
	}{
		{
			name: "missing title",
			req: model.CreateEventRequest{
				StartTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "missing start",
			req: model.CreateEventRequest{
				Title:   "Bad",
				EndTime: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "end before start",
			req: model.CreateEventRequest{
				Title:     "Bad",
				StartTime: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "zero duration",
			req: model.CreateEventRequest{
				Title:     "Bad",
				StartTime: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ValidationError
			_, err := svc.CreateEvent(ctx, "c1", "organizer", tc.req)
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestCreateEvent_ValidationLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.CreateEvent(ctx, "c1", "organizer", model.CreateEventRequest{
		Title:     "Bad",
		StartTime: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	events, err := store.GetEvents(ctx, "c1", time.Time{}, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateEvent_ConflictsAreAdvisory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:       "Existing",
		StartTime:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
		Attendees:   []string{"alice"},
		ResourceIDs: []string{"room-a"},
	})

	resp, err := svc.CreateEvent(ctx, "c1", "organizer", model.CreateEventRequest{
		Title:       "Overlapping",
		StartTime:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC),
		ResourceIDs: []string{"room-a"},
	})
	require.NoError(t, err, "conflicts never block creation")
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, model.ConflictResource, resp.Conflicts[0].Kind)

	// different company: no conflict
	resp, err = svc.CreateEvent(ctx, "c2", "organizer", model.CreateEventRequest{
		Title:       "Elsewhere",
		StartTime:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		EndTime:     time.Date(2024, 1, 15, 11, 30, 0, 0, time.UTC),
		ResourceIDs: []string{"room-a"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	event := mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Review",
		StartTime: time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC),
	})

	got, err := svc.TransitionStatus(ctx, "c1", event.ID, model.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)

	got, err = svc.TransitionStatus(ctx, "c1", event.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	// completed is terminal
	var verr *ValidationError
	_, err = svc.TransitionStatus(ctx, "c1", event.ID, model.StatusCancelled)
	require.ErrorAs(t, err, &verr)

	// cancellation from scheduled works
	other := mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Doomed",
		StartTime: time.Date(2024, 1, 16, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC),
	})
	got, err = svc.TransitionStatus(ctx, "c1", other.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// wrong tenant never sees the event
	_, err = svc.TransitionStatus(ctx, "c2", event.ID, model.StatusInProgress)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestView_Ranges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// Monday 2024-01-15
	date := time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		viewType  model.ViewType
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			viewType:  model.ViewDay,
			wantStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			// weeks start on Sunday
			viewType:  model.ViewWeek,
			wantStart: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC),
		},
		{
			viewType:  model.ViewMonth,
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			viewType:  model.ViewAgenda,
			wantStart: date,
			wantEnd:   date.AddDate(0, 0, 30),
		},
	}
	for _, tc := range tests {
		t.Run(string(tc.viewType), func(t *testing.T) {
			view, err := svc.View(ctx, "c1", tc.viewType, date)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, view.StartDate)
			assert.Equal(t, tc.wantEnd, view.EndDate)
		})
	}

	var verr *ValidationError
	_, err := svc.View(ctx, "c1", "year", date)
	require.ErrorAs(t, err, &verr)
}

func TestView_FetchesEventsInRange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	inside := mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Inside",
		StartTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
	})
	mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Outside",
		StartTime: time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 2, 20, 11, 0, 0, 0, time.UTC),
	})

	view, err := svc.View(ctx, "c1", model.ViewDay, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, view.Events, 1)
	assert.Equal(t, inside.ID, view.Events[0].ID)
}

func TestFindAvailableSlots_BusinessHours(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	slots, err := svc.FindAvailableSlots(ctx, "c1", start, end, time.Hour, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, slot := range slots {
		assert.GreaterOrEqual(t, slot.StartTime.Hour(), 9, "slot %v starts before business hours", slot.StartTime)
		endHour := slot.EndTime.Hour()
		if slot.EndTime.Minute() == 0 && slot.EndTime.Second() == 0 {
			assert.LessOrEqual(t, endHour, 17, "slot %v ends after business hours", slot.EndTime)
		} else {
			assert.Less(t, endHour, 17, "slot %v spills past closing", slot.EndTime)
		}
	}

	// 9:00 through 16:00 starts at 30-minute steps for a 1h meeting
	assert.Len(t, slots, 15)
	assert.True(t, slots[0].StartTime.Equal(start.Add(9*time.Hour)))
	last := slots[len(slots)-1]
	assert.Equal(t, 16, last.StartTime.Hour())
	assert.Equal(t, 17, last.EndTime.Hour())
}

func TestFindAvailableSlots_MarksConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Busy",
		StartTime: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
		Attendees: []string{"alice"},
	})

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	slots, err := svc.FindAvailableSlots(ctx, "c1", start, end, 30*time.Minute, []string{"alice"}, nil)
	require.NoError(t, err)

	byStart := make(map[int64]model.Slot, len(slots))
	for _, s := range slots {
		byStart[s.StartTime.Unix()] = s
	}

	blocked := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	free := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	assert.False(t, byStart[blocked.Unix()].Available)
	assert.NotEmpty(t, byStart[blocked.Unix()].Reason)
	assert.True(t, byStart[free.Unix()].Available)
}

func TestFindAvailableSlots_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	var verr *ValidationError
	_, err := svc.FindAvailableSlots(ctx, "c1", start, start, time.Hour, nil, nil)
	require.ErrorAs(t, err, &verr)

	_, err = svc.FindAvailableSlots(ctx, "c1", start, start.AddDate(0, 0, 1), 0, nil, nil)
	require.ErrorAs(t, err, &verr)
}

func TestSuggestMeetingTimes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	suggestions, err := svc.SuggestMeetingTimes(ctx, "c1", start, end, time.Hour, nil, nil, nil)
	require.NoError(t, err)
	assert.Len(t, suggestions, 5, "at most five suggestions")
	for _, s := range suggestions {
		assert.True(t, s.Available)
	}

	preferred := 14
	suggestions, err = svc.SuggestMeetingTimes(ctx, "c1", start, end, time.Hour, nil, nil, &preferred)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	for _, s := range suggestions {
		assert.Equal(t, 14, s.StartTime.Hour())
	}
}

func TestScheduleMeetingAutomatic(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	event, err := svc.ScheduleMeetingAutomatic(ctx, "c1", "organizer", "Kickoff", start, end, time.Hour, []string{"alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Kickoff", event.Title)
	assert.Equal(t, "meeting", event.EventType)
	assert.Equal(t, 9, event.StartTime.Hour(), "first free slot is at opening")

	// a second auto-schedule for the same attendee lands after the first
	second, err := svc.ScheduleMeetingAutomatic(ctx, "c1", "organizer", "Followup", start, end, time.Hour, []string{"alice"}, nil)
	require.NoError(t, err)
	assert.False(t, overlaps(event.StartTime, event.EndTime, second.StartTime, second.EndTime))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Meeting A",
		EventType: "meeting",
		StartTime: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	mustCreate(t, svc, "c1", model.CreateEventRequest{
		Title:     "Training",
		EventType: "training",
		StartTime: time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 16, 11, 0, 0, 0, time.UTC),
	})

	stats, err := svc.Stats(ctx, "c1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEvents)
	assert.Equal(t, 1, stats.ByType["meeting"])
	assert.Equal(t, 1, stats.ByType["training"])
	assert.Equal(t, 2, stats.ByStatus["scheduled"])
	assert.InDelta(t, 3.5, stats.TotalHours, 0.001)
}
