package handler

import (
	"net/http"
	"strconv"

	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// HistoryHandler handles history log HTTP requests.
type HistoryHandler struct {
	history *service.HistoryRecorder
	undo    *service.UndoService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history *service.HistoryRecorder, undo *service.UndoService) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		undo:    undo,
	}
}

// List handles GET /api/v1/history?limit=&offset=
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, total, err := h.history.List(r.Context(), sess, limit, offset)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, entries, limit, offset, total)
}

// UndoEntry handles POST /api/v1/history/{id}/undo
func (h *HistoryHandler) UndoEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.undo.UndoEntry(r.Context(), sess, id)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, entry)
}

// InvokeUndo handles POST /api/v1/undo/{token}
func (h *HistoryHandler) InvokeUndo(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	applied, err := h.undo.Invoke(r.Context(), token)
	if err != nil {
		serviceError(w, err)
		return
	}

	// An expired or consumed token is a silent no-op, not an error.
	response.OK(w, map[string]interface{}{
		"applied": applied,
	})
}
