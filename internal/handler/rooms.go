// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/collabcore/realtime-platform/internal/collab"
	"github.com/collabcore/realtime-platform/internal/middleware"
	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/logger"
)

// UpdateHistory replays a room's persisted updates.
type UpdateHistory interface {
	GetUpdates(ctx context.Context, companyID, roomID string, afterSequence uint64, limit int) ([]model.Update, uint64, bool, error)
}

// RoomHandler handles collaboration room endpoints.
type RoomHandler struct {
	manager *collab.Manager
	history UpdateHistory
	logger  *logger.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(manager *collab.Manager, history UpdateHistory, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		manager: manager,
		history: history,
		logger:  log,
	}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)

	var req struct {
		EntityType model.EntityType `json:"entity_type"`
		EntityID   string           `json:"entity_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateEntityID(req.EntityID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.manager.CreateRoom(ctx, req.EntityType, req.EntityID, companyID)
	if err != nil {
		writeCollabError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// Get handles GET /api/v1/rooms/:id
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	roomID := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.manager.GetRoom(ctx, roomID, companyID)
	if err != nil {
		writeCollabError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// Join handles POST /api/v1/rooms/:id/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userName := req.UserName
	if userName == "" {
		userName = middleware.GetUserName(ctx)
	}
	userEmail := req.UserEmail
	if userEmail == "" {
		userEmail = middleware.GetUserEmail(ctx)
	}

	room, snapshot, err := h.manager.JoinRoom(ctx, roomID, userID, userName, userEmail, companyID, req.ClientID)
	if err != nil {
		writeCollabError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.JoinRoomResponse{Room: &room, Snapshot: snapshot})
}

// Leave handles POST /api/v1/rooms/:id/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.manager.LeaveRoom(ctx, roomID, userID, companyID); err != nil {
		writeCollabError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Update handles POST /api/v1/rooms/:id/updates
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateFieldName(req.FieldName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.manager.ProcessUpdate(ctx, roomID, userID, companyID, req)
	if err != nil && update == nil {
		writeCollabError(w, err)
		return
	}
	if err != nil {
		// Update was accepted and versioned but the audit write failed.
		h.logger.Warn("update accepted with persistence failure")
		writeJSON(w, http.StatusAccepted, update)
		return
	}

	writeJSON(w, http.StatusOK, update)
}

// ListUpdates handles GET /api/v1/rooms/:id/updates
func (h *RoomHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	roomID := chi.URLParam(r, "id")

	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	var after uint64
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if a := r.URL.Query().Get("after"); a != "" {
		if parsed, err := strconv.ParseUint(a, 10, 64); err == nil {
			after = parsed
		}
	}

	updates, lastSeq, hasMore, err := h.history.GetUpdates(ctx, companyID, roomID, after, limit)
	if err != nil {
		h.logger.Error("failed to fetch update history")
		writeError(w, http.StatusInternalServerError, "failed to fetch updates")
		return
	}

	writeJSON(w, http.StatusOK, model.ListUpdatesResponse{
		Updates:      updates,
		HasMore:      hasMore,
		LastSequence: lastSeq,
	})
}

// Cursor handles POST /api/v1/rooms/:id/cursor
func (h *RoomHandler) Cursor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	var req model.CursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.UpdateCursor(ctx, roomID, userID, companyID, req.Cursor); err != nil {
		writeCollabError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Typing handles POST /api/v1/rooms/:id/typing
func (h *RoomHandler) Typing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	var req model.TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.UpdateTyping(ctx, roomID, userID, companyID, req.IsTyping); err != nil {
		writeCollabError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lock handles POST /api/v1/rooms/:id/lock
func (h *RoomHandler) Lock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	acquired, err := h.manager.Lock(ctx, roomID, userID, companyID)
	if err != nil {
		writeCollabError(w, err)
		return
	}

	resp := model.LockResponse{Acquired: acquired}
	if !acquired {
		if room, rerr := h.manager.GetRoom(ctx, roomID, companyID); rerr == nil {
			resp.LockedBy = room.LockedBy
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Unlock handles POST /api/v1/rooms/:id/unlock
func (h *RoomHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := middleware.GetCompanyID(ctx)
	userID := middleware.GetUserID(ctx)
	roomID := chi.URLParam(r, "id")

	released, err := h.manager.Unlock(ctx, roomID, userID, companyID)
	if err != nil {
		writeCollabError(w, err)
		return
	}
	if !released {
		writeJSON(w, http.StatusConflict, map[string]bool{"released": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}
