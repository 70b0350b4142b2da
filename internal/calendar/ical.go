package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/collabcore/realtime-platform/internal/model"
)

const (
	icalProdID     = "-//CollabCore//Realtime Platform//EN"
	icalTimeLayout = "20060102T150405Z"
)

// ExportICal serializes the company's events in a range as RFC5545
// iCalendar text: one VEVENT block per event, dates in UTC.
func (s *Service) ExportICal(ctx context.Context, companyID string, startDate, endDate time.Time) (string, error) {
	events, err := s.store.GetEvents(ctx, companyID, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("fetch events: %w", err)
	}

	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+icalProdID)
	writeLine(&b, "CALSCALE:GREGORIAN")

	stamp := s.now().UTC().Format(icalTimeLayout)
	for i := range events {
		writeEvent(&b, &events[i], stamp)
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String(), nil
}

func writeEvent(b *strings.Builder, ev *model.CalendarEvent, stamp string) {
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, "UID:"+ev.ID)
	writeLine(b, "DTSTAMP:"+stamp)
	writeLine(b, "DTSTART:"+ev.StartTime.UTC().Format(icalTimeLayout))
	writeLine(b, "DTEND:"+ev.EndTime.UTC().Format(icalTimeLayout))
	writeLine(b, "SUMMARY:"+escapeText(ev.Title))
	if ev.Description != "" {
		writeLine(b, "DESCRIPTION:"+escapeText(ev.Description))
	}
	if ev.Location != "" {
		writeLine(b, "LOCATION:"+escapeText(ev.Location))
	}
	writeLine(b, "STATUS:"+icalStatus(ev.Status))
	writeLine(b, fmt.Sprintf("PRIORITY:%d", icalPriority(ev.Priority)))
	writeLine(b, "END:VEVENT")
}

// writeLine appends a content line with the CRLF ending RFC5545 requires.
func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

// escapeText escapes the characters RFC5545 reserves in TEXT values.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

func icalStatus(status model.EventStatus) string {
	switch status {
	case model.StatusCancelled:
		return "CANCELLED"
	case model.StatusScheduled:
		return "CONFIRMED"
	default:
		return strings.ToUpper(string(status))
	}
}

// icalPriority maps domain priority onto the RFC5545 1-9 scale.
func icalPriority(p model.EventPriority) int {
	switch p {
	case model.PriorityUrgent:
		return 1
	case model.PriorityHigh:
		return 3
	case model.PriorityLow:
		return 9
	default:
		return 5
	}
}
