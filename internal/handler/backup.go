package handler

import (
	"net/http"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// BackupHandler handles backup snapshot HTTP requests.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// backupSummary is the list form of a snapshot: metadata without members.
type backupSummary struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	ItemCount int    `json:"item_count"`
}

func summarize(snaps []model.BackupSnapshot) []backupSummary {
	out := make([]backupSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, backupSummary{
			ID:        snap.ID,
			Timestamp: snap.Timestamp.Format(time.RFC3339),
			ItemCount: snap.ItemCount,
		})
	}
	return out
}

// Create handles POST /api/v1/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	snap, err := h.backups.BackupNow(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, snap)
}

// List handles GET /api/v1/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	snaps, err := h.backups.List(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"backups": summarize(snaps),
		"count":   len(snaps),
	})
}

// Restore handles POST /api/v1/backups/{id}/restore
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	snap, err := h.backups.Restore(r.Context(), sess, id)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"restored":   true,
		"backup_id":  snap.ID,
		"item_count": snap.ItemCount,
	})
}

// RestoreLatest handles POST /api/v1/backups/restore-latest
func (h *BackupHandler) RestoreLatest(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	snap, err := h.backups.RestoreLatest(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"restored":   true,
		"backup_id":  snap.ID,
		"item_count": snap.ItemCount,
	})
}

// Rescue handles POST /api/v1/backups/{id}/rescue
func (h *BackupHandler) Rescue(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	snap, err := h.backups.RescueMerge(r.Context(), sess, id)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"merged":     true,
		"backup_id":  snap.ID,
		"item_count": snap.ItemCount,
	})
}

// Delete handles DELETE /api/v1/backups/{id}
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.backups.Delete(r.Context(), sess, id); err != nil {
		serviceError(w, err)
		return
	}

	response.NoContent(w)
}
