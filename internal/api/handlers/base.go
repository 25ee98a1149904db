package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// maxBodyBytes caps request bodies; decisions for a large cycle stay well under it.
const maxBodyBytes = 1 << 20

// Base provides shared functionality for all handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteServiceError maps a review service error to a status code and error body.
func (b *Base) WriteServiceError(w http.ResponseWriter, err error) {
	var invalid *interval.InvalidRangeError

	switch {
	case errors.As(err, &invalid):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, review.ErrInvalidDecision):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, review.ErrCycleNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError("scan cycle"))
	case errors.Is(err, review.ErrScopeBusy), errors.Is(err, review.ErrNonContiguous):
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case review.IsUnavailable(err):
		b.WriteError(w, http.StatusServiceUnavailable, dto.UnavailableError(err.Error()))
	case errors.Is(err, recommend.ErrInvalidChunking):
		b.WriteError(w, http.StatusInternalServerError, dto.NewAPIError(dto.ErrCodeInternalError, err.Error()))
	default:
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// DecodeJSON reads a JSON body into req and validates it. On failure it
// writes the error response and returns false.
func (b *Base) DecodeJSON(w http.ResponseWriter, r *http.Request, req any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return false
	}
	if err := dto.Validate(req); err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return false
	}
	return true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
