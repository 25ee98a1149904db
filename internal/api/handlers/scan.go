package handlers

import (
	"net/http"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

// ScanHandler runs ad-hoc scans that do not open a review cycle.
type ScanHandler struct {
	*Base
	review *review.Service
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(svc *review.Service) *ScanHandler {
	return &ScanHandler{
		Base:   &Base{},
		review: svc,
	}
}

// Scan handles POST /api/scan - returns transfer candidates in a range
// across all accounts. Nothing is persisted.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req dto.RangeRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	window, err := interval.Parse(req.Start, req.End)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	candidates, err := h.review.ScanForCandidates(r.Context(), window)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ScanResponse{
		Range:      toRangeResponse(window),
		Candidates: toCandidateResponses(candidates),
		Count:      len(candidates),
	})
}
