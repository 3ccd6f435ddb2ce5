package handlers

import (
	"net/http"

	"github.com/zetta-ds/carsigef/internal/infrastructure/dataset"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store *dataset.Store
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(store *dataset.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness reports that the process is up.
// GET /healthz
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the dataset is loaded and queryable. A server
// that has not yet loaded (or was just reset) answers 503 so load-balancers
// route around the cold instance.
// GET /readyz
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if !h.store.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "loading",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"rows":       h.store.RowCount(),
		"generation": h.store.Generation(),
	})
}
