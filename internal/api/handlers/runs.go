package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// RunsHandler serves the scan cycle history.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent scan cycles, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultScanCycleListParams()
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	if err := dto.Validate(params); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	cycles, err := h.repo.ListScanCycles(r.Context(), params.Limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ScanCycleListResponse{
		Runs:  make([]dto.ScanCycleResponse, 0, len(cycles)),
		Count: len(cycles),
	}

	for _, c := range cycles {
		response.Runs = append(response.Runs, toScanCycleResponse(c))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single scan cycle record.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	cycle, err := h.repo.GetScanCycle(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if cycle == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("scan cycle"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toScanCycleResponse(*cycle))
}
