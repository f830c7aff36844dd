package handler

import (
	"net/http"
	"runtime"
	"time"

	"freshkeep-api/internal/repository"
	"freshkeep-api/pkg/response"
)

// AdminHandler serves operational statistics.
type AdminHandler struct {
	store repository.Store
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store repository.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.store.Stats(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response.OK(w, map[string]interface{}{
		"store": storeStats,
		"runtime": map[string]interface{}{
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"num_gc":         mem.NumGC,
			"uptime":         time.Since(StartTime).Round(time.Second).String(),
		},
	})
}
