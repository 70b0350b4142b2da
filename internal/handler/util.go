package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/collabcore/realtime-platform/internal/calendar"
	"github.com/collabcore/realtime-platform/internal/collab"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeCollabError maps session-manager errors to HTTP statuses.
func writeCollabError(w http.ResponseWriter, err error) {
	var verr *collab.ValidationError
	switch {
	case errors.Is(err, collab.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, collab.ErrCompanyMismatch):
		writeError(w, http.StatusForbidden, "room belongs to another company")
	case errors.Is(err, collab.ErrRoomFull):
		writeError(w, http.StatusConflict, "room is full")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeCalendarError maps calendar errors to HTTP statuses.
func writeCalendarError(w http.ResponseWriter, err error) {
	var verr *calendar.ValidationError
	switch {
	case errors.Is(err, calendar.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errInvalidDate(name string) error {
	return fmt.Errorf("invalid %s date, want RFC3339 or YYYY-MM-DD", name)
}
