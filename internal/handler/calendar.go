package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collabcore/realtime-platform/internal/calendar"
	"github.com/collabcore/realtime-platform/internal/middleware"
	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/logger"
)

// CalendarHandler handles calendar endpoints.
type CalendarHandler struct {
	service *calendar.Service
	logger  *logger.Logger
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(svc *calendar.Service, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		service: svc,
		logger:  log,
	}
}

// CreateEvent handles POST /api/v1/calendar/events
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)

	var req model.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.CreateEvent(ctx, companyID, userID, req)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// TransitionStatus handles POST /api/v1/calendar/events/:id/status
func (h *CalendarHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	eventID := chi.URLParam(r, "id")

	var req struct {
		Status model.EventStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.service.TransitionStatus(ctx, companyID, eventID, req.Status)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// View handles GET /api/v1/calendar/view?type=week&date=2024-01-15
func (h *CalendarHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	viewType := model.ViewType(r.URL.Query().Get("type"))
	if viewType == "" {
		viewType = model.ViewWeek
	}
	date, err := parseDateParam(r, "date", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.View(ctx, companyID, viewType, date)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Slots handles GET /api/v1/calendar/slots
func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	start, end, duration, err := slotSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attendees := splitParam(r, "attendees")
	resources := splitParam(r, "resources")

	slots, err := h.service.FindAvailableSlots(ctx, companyID, start, end, duration, attendees, resources)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Suggest handles GET /api/v1/calendar/suggest
func (h *CalendarHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	start, end, duration, err := slotSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attendees := splitParam(r, "attendees")
	resources := splitParam(r, "resources")

	var preferredHour *int
	if p := r.URL.Query().Get("preferred_hour"); p != "" {
		if parsed, perr := strconv.Atoi(p); perr == nil {
			preferredHour = &parsed
		}
	}

	suggestions, err := h.service.SuggestMeetingTimes(ctx, companyID, start, end, duration, attendees, resources, preferredHour)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// AutoSchedule handles POST /api/v1/calendar/schedule
func (h *CalendarHandler) AutoSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)

	var req struct {
		Title           string    `json:"title"`
		StartDate       time.Time `json:"start_date"`
		EndDate         time.Time `json:"end_date"`
		DurationMinutes int       `json:"duration_minutes"`
		Attendees       []string  `json:"attendees,omitempty"`
		Resources       []string  `json:"resources,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.ScheduleMeetingAutomatic(ctx, companyID, userID, req.Title,
		req.StartDate, req.EndDate, time.Duration(req.DurationMinutes)*time.Minute,
		req.Attendees, req.Resources)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// Export handles GET /api/v1/calendar/export
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	start, err := parseDateParam(r, "start", time.Now().AddDate(0, -1, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end", time.Now().AddDate(0, 3, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ics, err := h.service.ExportICal(ctx, companyID, start, end)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ics))
}

// Stats handles GET /api/v1/calendar/stats
func (h *CalendarHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	start, err := parseDateParam(r, "start", time.Now().AddDate(0, -1, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.service.Stats(ctx, companyID, start, end)
	if err != nil {
		writeCalendarError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func slotSearchParams(r *http.Request) (start, end time.Time, duration time.Duration, err error) {
	start, err = parseDateParam(r, "start", time.Now())
	if err != nil {
		return
	}
	end, err = parseDateParam(r, "end", time.Now().AddDate(0, 0, 7))
	if err != nil {
		return
	}
	minutes := 30
	if d := r.URL.Query().Get("duration"); d != "" {
		if parsed, perr := strconv.Atoi(d); perr == nil && parsed > 0 {
			minutes = parsed
		}
	}
	duration = time.Duration(minutes) * time.Minute
	return
}

// parseDateParam reads a query date as RFC3339 or YYYY-MM-DD.
func parseDateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidDate(name)
}

func splitParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
