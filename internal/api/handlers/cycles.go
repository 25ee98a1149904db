package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/application/review"
)

// CyclesHandler drives interactive review cycles.
type CyclesHandler struct {
	*Base
	review *review.Service
}

// NewCyclesHandler creates a new cycles handler.
func NewCyclesHandler(svc *review.Service) *CyclesHandler {
	return &CyclesHandler{
		Base:   &Base{},
		review: svc,
	}
}

// Start handles POST /api/scopes/{scope}/cycles - scans the recommended
// range and opens a cycle for review.
//
// Returns 201 with an open cycle, or 200 with a summary-only cycle when
// there is nothing to scan.
func (h *CyclesHandler) Start(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	cycle, err := h.review.StartCycle(r.Context(), scope)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if cycle.ID != "" {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, toCycleResponse(cycle))
}

// Get handles GET /api/cycles/{id}.
func (h *CyclesHandler) Get(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.review.GetCycle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toCycleResponse(cycle))
}

// Decide handles POST /api/cycles/{id}/decisions. On a store failure the
// cycle stays open and the same request can be retried.
func (h *CyclesHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req dto.DecisionsRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	cycle, err := h.review.Decide(r.Context(), chi.URLParam(r, "id"), review.Decisions{
		Accepted:    req.Accepted,
		Rejected:    req.Rejected,
		MarkChecked: req.MarkChecked,
	})
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toCycleResponse(cycle))
}

// Abandon handles DELETE /api/cycles/{id} - drops the cycle without
// linking anything or marking the range checked.
func (h *CyclesHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.review.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "scan cycle abandoned"})
}
