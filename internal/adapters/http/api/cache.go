package api

import (
	"net/http"
)

// CacheHandler clears cached records.
type CacheHandler struct {
	coordinator Coordinator
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(c Coordinator) *CacheHandler {
	return &CacheHandler{coordinator: c}
}

// HandleClearAll handles DELETE /api/v1/cache.
func (h *CacheHandler) HandleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.ClearCache(r.Context(), ""); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearUser handles DELETE /api/v1/cache/{username}.
func (h *CacheHandler) HandleClearUser(w http.ResponseWriter, r *http.Request) {
	name, ok := usernameParam(w, r)
	if !ok {
		return
	}
	if err := h.coordinator.ClearCache(r.Context(), name); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
