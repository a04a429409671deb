package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/leetstat/internal/domain/model"
)

// CompareHandler serves peer comparisons.
type CompareHandler struct {
	coordinator Coordinator
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(c Coordinator) *CompareHandler {
	return &CompareHandler{coordinator: c}
}

type compareResponse struct {
	Peers []model.PeerStats `json:"peers"`
}

// HandleCompare handles GET /api/v1/compare?users=a,b.
func (h *CompareHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, part := range strings.Split(r.URL.Query().Get("users"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: users is required", ErrBadRequest))
		return
	}
	peers, err := h.coordinator.Compare(r.Context(), names)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Peers: peers})
}
