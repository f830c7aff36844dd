package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/sanitize"
	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/apierror"
	"freshkeep-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ItemHandler handles inventory item HTTP requests.
type ItemHandler struct {
	inventory *service.InventoryService
	expiry    *service.ExpiryService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(inventory *service.InventoryService, expiry *service.ExpiryService) *ItemHandler {
	return &ItemHandler{
		inventory: inventory,
		expiry:    expiry,
	}
}

// itemMutationResponse pairs a mutated item with its undo offer.
type itemMutationResponse struct {
	Item model.Item           `json:"item"`
	Undo *service.PendingUndo `json:"undo,omitempty"`
}

// Create handles POST /api/v1/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var raw sanitize.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	item, undo, err := h.inventory.Add(r.Context(), sess, raw)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, itemMutationResponse{Item: item, Undo: undo})
}

// List handles GET /api/v1/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if storage := strings.TrimSpace(r.URL.Query().Get("storage")); storage != "" {
		tag := model.StorageLocation(strings.ToUpper(storage))
		if !model.KnownStorage(tag) {
			response.Error(w, apierror.ValidationError("unknown storage tag"))
			return
		}
		sess.StorageFilter = tag
	}

	items, err := h.inventory.List(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// Get handles GET /api/v1/items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	item, err := h.inventory.Get(r.Context(), sess, id)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, item)
}

// Update handles PATCH /api/v1/items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var raw sanitize.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	id := chi.URLParam(r, "id")
	item, undo, err := h.inventory.Update(r.Context(), sess, id, raw)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, itemMutationResponse{Item: item, Undo: undo})
}

// Delete handles DELETE /api/v1/items/{id}?qty=k
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	units := 0
	if qty := r.URL.Query().Get("qty"); qty != "" {
		parsed, err := strconv.Atoi(qty)
		if err != nil || parsed < 1 {
			response.Error(w, apierror.ValidationError("qty must be a positive integer"))
			return
		}
		units = parsed
	}

	id := chi.URLParam(r, "id")
	undo, err := h.inventory.Delete(r.Context(), sess, id, units)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"deleted": true,
		"undo":    undo,
	})
}

// bulkAddRequest carries pasted purchase text.
type bulkAddRequest struct {
	Text string `json:"text"`
}

// BulkAdd handles POST /api/v1/items/bulk
func (h *ItemHandler) BulkAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req bulkAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	added, err := h.inventory.BulkAdd(r.Context(), sess, req.Text)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, map[string]interface{}{
		"items": added,
		"count": len(added),
	})
}

// deleteSelectedRequest carries the ids targeted by a bulk delete.
type deleteSelectedRequest struct {
	IDs []string `json:"ids"`
}

// DeleteSelected handles POST /api/v1/items/selected:delete
func (h *ItemHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req deleteSelectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	deleted, failed, err := h.inventory.DeleteSelected(r.Context(), sess, req.IDs)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"deleted": deleted,
		"failed":  failed,
	})
}

// DeleteAll handles DELETE /api/v1/items
func (h *ItemHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	deleted, err := h.inventory.DeleteAll(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"deleted": deleted,
	})
}

// Expiring handles GET /api/v1/items/expiring
func (h *ItemHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	view, err := h.expiry.SoonExpiring(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"items": view,
		"count": len(view),
	})
}
