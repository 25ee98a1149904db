package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/api/handlers"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

func newScopesHandler(repo *storage.MockRepository) *handlers.ScopesHandler {
	return handlers.NewScopesHandler(repo, newReviewService(repo))
}

func scopeRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = jsonRequest(t, method, path, body)
	}
	return req.WithContext(setChiURLParam(req.Context(), "scope", scope))
}

func TestScopesHandler_Status(t *testing.T) {
	t.Run("recommends the initial range", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedTransactions(t, repo)
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.Status(rec, scopeRequest(t, http.MethodGet, "/api/scopes/household/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.StatusResponse](t, rec)
		assert.Equal(t, scope, response.Scope)
		assert.True(t, response.Progress.HasData)
		assert.Equal(t, 373, response.Progress.TotalDays)
		assert.Equal(t, 373, response.Progress.RemainingDays)
		require.NotNil(t, response.RecommendedRange)
		assert.Equal(t, "2024-12-09T00:00:00Z", response.RecommendedRange.Start)
		assert.Equal(t, "2025-01-08T00:00:00Z", response.RecommendedRange.End)
		assert.Equal(t, "initial", response.Direction)
		assert.Equal(t, 30, response.ChunkDays)
	})

	t.Run("no data", func(t *testing.T) {
		handler := newScopesHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.Status(rec, scopeRequest(t, http.MethodGet, "/api/scopes/household/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.StatusResponse](t, rec)
		assert.False(t, response.Progress.HasData)
		assert.Nil(t, response.RecommendedRange)
	})

	t.Run("store failure is reported in progress", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedTransactions(t, repo)
		repo.GetAccountRangeErr = errors.New("connection refused")
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.Status(rec, scopeRequest(t, http.MethodGet, "/api/scopes/household/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.StatusResponse](t, rec)
		assert.Contains(t, response.Progress.Error, "connection refused")
		assert.Nil(t, response.RecommendedRange)
	})
}

func TestScopesHandler_CommitRange(t *testing.T) {
	t.Run("commits and merges", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedTransactions(t, repo)
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range",
			dto.RangeRequest{Start: "2024-12-09", End: "2025-01-08"}))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range",
			dto.RangeRequest{Start: "2024-11-12", End: "2024-12-12"}))
		require.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.CommitResponse](t, rec)
		assert.Equal(t, "2024-11-12T00:00:00Z", response.CheckedRange.Start)
		assert.Equal(t, "2025-01-08T23:59:59Z", response.CheckedRange.End, "a bare end date covers the whole day")

		state, err := repo.GetTransferPreferences(context.Background(), scope)
		require.NoError(t, err)
		require.NotNil(t, state.CheckedRange)
		assert.Equal(t, date(2024, 11, 12), state.CheckedRange.Start)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler := newScopesHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range", "{not json"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decode[dto.APIError](t, rec).Code)
	})

	t.Run("rejects start after end", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range",
			dto.RangeRequest{Start: "2025-01-08", End: "2024-12-09"}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode[dto.APIError](t, rec).Code)
		assert.Zero(t, repo.SaveCheckedRangeCalls)
	})

	t.Run("rejects non-contiguous range", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedTransactions(t, repo)
		require.NoError(t, repo.SaveCheckedRange(context.Background(), scope,
			interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))))
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range",
			dto.RangeRequest{Start: "2024-03-01", End: "2024-03-31"}))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, dto.ErrCodeConflict, decode[dto.APIError](t, rec).Code)
	})

	t.Run("store failure is unavailable", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedTransactions(t, repo)
		repo.SaveCheckedRangeErr = errors.New("disk full")
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.CommitRange(rec, scopeRequest(t, http.MethodPost, "/api/scopes/household/checked-range",
			dto.RangeRequest{Start: "2024-12-09", End: "2025-01-08"}))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, dto.ErrCodeUnavailable, decode[dto.APIError](t, rec).Code)
	})
}

func TestScopesHandler_Preferences(t *testing.T) {
	t.Run("defaults for unknown scope", func(t *testing.T) {
		handler := newScopesHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.GetPreferences(rec, scopeRequest(t, http.MethodGet, "/api/scopes/household/preferences", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.PreferencesResponse](t, rec)
		assert.Equal(t, scope, response.Scope)
		assert.Zero(t, response.DefaultChunkDays)
		assert.Empty(t, response.LastUsedChunkSizes)
		assert.Nil(t, response.CheckedRange)
	})

	t.Run("put keeps the checked range", func(t *testing.T) {
		repo := storage.NewMockRepository()
		require.NoError(t, repo.SaveCheckedRange(context.Background(), scope,
			interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))))
		handler := newScopesHandler(repo)

		rec := httptest.NewRecorder()
		handler.PutPreferences(rec, scopeRequest(t, http.MethodPut, "/api/scopes/household/preferences",
			dto.PreferencesRequest{DefaultChunkDays: 14, LastUsedChunkSizes: []int{30}, AutoExpand: true}))

		require.Equal(t, http.StatusOK, rec.Code)

		response := decode[dto.PreferencesResponse](t, rec)
		assert.Equal(t, 14, response.DefaultChunkDays)
		assert.Equal(t, []int{30}, response.LastUsedChunkSizes)
		assert.True(t, response.AutoExpand)
		require.NotNil(t, response.CheckedRange)
		assert.Equal(t, "2024-12-09T00:00:00Z", response.CheckedRange.Start)

		state, err := repo.GetTransferPreferences(context.Background(), scope)
		require.NoError(t, err)
		assert.Equal(t, recommend.Preferences{DefaultChunkDays: 14, LastUsedChunkSizes: []int{30}, AutoExpand: true}, state.Preferences)
	})

	t.Run("put rejects invalid chunk", func(t *testing.T) {
		handler := newScopesHandler(storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.PutPreferences(rec, scopeRequest(t, http.MethodPut, "/api/scopes/household/preferences",
			dto.PreferencesRequest{DefaultChunkDays: -5}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode[dto.APIError](t, rec).Code)
	})
}
