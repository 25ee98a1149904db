package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eshaffer321/transferscan/internal/api/dto"
)

// healthCheckTimeout bounds the store probe so a hung database fails the
// check instead of hanging the load balancer.
const healthCheckTimeout = 2 * time.Second

// AccountLister is the store access the health check needs.
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store AccountLister
}

// NewHealthHandler creates a new health handler. With a nil store only
// liveness is reported.
func NewHealthHandler(store AccountLister) *HealthHandler {
	return &HealthHandler{store: store}
}

// ServeHTTP handles the health check request. It answers 503 when the
// store cannot list accounts.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()
	code := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		ids, err := h.store.ListAccountIDs(ctx)
		if err != nil {
			response.Status = "unavailable"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			response.Accounts = len(ids)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}
