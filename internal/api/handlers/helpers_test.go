package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

const scope = "household"

// setChiURLParam adds URL params to the request context for testing
func setChiURLParam(ctx context.Context, kv ...string) context.Context {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func newReviewService(repo *storage.MockRepository) *review.Service {
	return review.NewService(repo, review.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedTransactions loads a year of checking history with one transfer to
// savings in early January.
func seedTransactions(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	tx := func(id, account, amount string, when time.Time) matcher.Transaction {
		return matcher.Transaction{
			ID:        id,
			AccountID: account,
			Date:      when,
			Amount:    decimal.RequireFromString(amount),
			Currency:  "USD",
		}
	}
	require.NoError(t, repo.SaveTransactions(context.Background(), []matcher.Transaction{
		tx("open", "checking", "1500.00", date(2024, 1, 1)),
		tx("rent", "checking", "-1200.00", date(2024, 6, 1)),
		tx("out", "checking", "-100.00", date(2025, 1, 5)),
		tx("in", "savings", "100.00", date(2025, 1, 6)),
		tx("coffee", "checking", "-4.50", date(2025, 1, 8)),
	}))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
