package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// ScopesHandler handles per-scope progress, checked range and preferences.
type ScopesHandler struct {
	*Base
	review *review.Service
}

// NewScopesHandler creates a new scopes handler.
func NewScopesHandler(repo storage.Repository, svc *review.Service) *ScopesHandler {
	return &ScopesHandler{
		Base:   NewBase(repo),
		review: svc,
	}
}

// Status handles GET /api/scopes/{scope}/status.
// A data store failure still answers 200 with progress.error set.
func (h *ScopesHandler) Status(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	status, err := h.review.ComputeProgressAndRecommendation(r.Context(), scope)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toStatusResponse(*status))
}

// CommitRange handles POST /api/scopes/{scope}/checked-range - marks a
// scanned range as checked and returns the merged checked range.
func (h *ScopesHandler) CommitRange(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	var req dto.RangeRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	scanned, err := interval.Parse(req.Start, req.End)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	merged, err := h.review.CommitScannedRange(r.Context(), scope, scanned)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.CommitResponse{
		Scope:        scope,
		CheckedRange: toRangeResponse(merged),
	})
}

// GetPreferences handles GET /api/scopes/{scope}/preferences.
func (h *ScopesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	state, err := h.repo.GetTransferPreferences(r.Context(), scope)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toPreferencesResponse(scope, state))
}

// PutPreferences handles PUT /api/scopes/{scope}/preferences. The checked
// range is not touched.
func (h *ScopesHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	var req dto.PreferencesRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	prefs := recommend.Preferences{
		DefaultChunkDays:   req.DefaultChunkDays,
		LastUsedChunkSizes: req.LastUsedChunkSizes,
		AutoExpand:         req.AutoExpand,
	}
	if err := h.repo.SavePreferences(r.Context(), scope, prefs); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	state, err := h.repo.GetTransferPreferences(r.Context(), scope)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toPreferencesResponse(scope, state))
}

func toPreferencesResponse(scope string, state *storage.ScanState) dto.PreferencesResponse {
	resp := dto.PreferencesResponse{
		Scope:              scope,
		DefaultChunkDays:   state.Preferences.DefaultChunkDays,
		LastUsedChunkSizes: state.Preferences.LastUsedChunkSizes,
		AutoExpand:         state.Preferences.AutoExpand,
		CheckedRange:       toRangeResponsePtr(state.CheckedRange),
	}
	if resp.LastUsedChunkSizes == nil {
		resp.LastUsedChunkSizes = []int{}
	}
	if !state.UpdatedAt.IsZero() {
		resp.UpdatedAt = state.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
