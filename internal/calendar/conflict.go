package calendar

import (
	"fmt"
	"time"

	"github.com/collabcore/realtime-platform/internal/model"
)

// overlaps reports whether the two half-open intervals intersect.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// findConflicts checks a candidate window against existing events and
// classifies each overlap. Cancelled events never conflict. A shared
// resource wins over a shared attendee, which wins over a plain time
// overlap.
func findConflicts(existing []model.CalendarEvent, start, end time.Time, attendees, resources []string) []model.EventConflict {
	var conflicts []model.EventConflict

	for i := range existing {
		ev := &existing[i]
		if ev.Status == model.StatusCancelled {
			continue
		}
		if !overlaps(start, end, ev.StartTime, ev.EndTime) {
			continue
		}

		if id, ok := sharedID(resources, ev.ResourceIDs); ok {
			conflicts = append(conflicts, model.EventConflict{
				Kind:        model.ConflictResource,
				WithEventID: ev.ID,
				Detail:      fmt.Sprintf("resource %s double-booked", id),
			})
			continue
		}
		if id, ok := sharedID(attendees, ev.Attendees); ok {
			conflicts = append(conflicts, model.EventConflict{
				Kind:        model.ConflictAttendee,
				WithEventID: ev.ID,
				Detail:      fmt.Sprintf("attendee %s double-booked", id),
			})
			continue
		}
		conflicts = append(conflicts, model.EventConflict{
			Kind:        model.ConflictTime,
			WithEventID: ev.ID,
		})
	}
	return conflicts
}

func sharedID(a, b []string) (string, bool) {
	if len(a) == 0 || len(b) == 0 {
		return "", false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return id, true
		}
	}
	return "", false
}
