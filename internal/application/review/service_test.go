package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

const scope = "household"

var errStoreDown = errors.New("connection refused")

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(id, account string, amount string, when time.Time) matcher.Transaction {
	return matcher.Transaction{
		ID:        id,
		AccountID: account,
		Date:      when,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo *storage.MockRepository, mutate ...func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewService(repo, cfg, quietLogger(), nil)
}

// seedYear stores a year of history on checking plus a transfer near the end.
func seedYear(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	require.NoError(t, repo.SaveTransactions(context.Background(), []matcher.Transaction{
		tx("open", "checking", "1500.00", date(2024, 1, 1)),
		tx("rent", "checking", "-1200.00", date(2024, 6, 1)),
		tx("out", "checking", "-100.00", date(2025, 1, 5)),
		tx("in", "savings", "100.00", date(2025, 1, 6)),
		tx("coffee", "checking", "-4.50", date(2025, 1, 8)),
	}))
}

func TestComputeProgressAndRecommendation_InitialScan(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	svc := newTestService(t, repo)

	status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)
	require.NoError(t, err)

	require.NotNil(t, status.AccountRange)
	assert.Equal(t, date(2024, 1, 1), status.AccountRange.Start)
	assert.Equal(t, date(2025, 1, 8), status.AccountRange.End)

	assert.True(t, status.Progress.HasData)
	assert.Equal(t, 373, status.Progress.TotalDays)
	assert.Equal(t, 0, status.Progress.ProgressPercentage)
	assert.Empty(t, status.Progress.Error)

	require.NotNil(t, status.RecommendedRange)
	assert.Equal(t, date(2024, 12, 9), status.RecommendedRange.Start)
	assert.Equal(t, date(2025, 1, 8), status.RecommendedRange.End)
	assert.Equal(t, recommend.DirectionInitial, status.Direction)
	assert.Equal(t, 30, status.ChunkDays)
}

func TestComputeProgressAndRecommendation_ForwardFromStoredRange(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	require.NoError(t, repo.SaveCheckedRange(context.Background(), scope,
		interval.MustNew(date(2024, 12, 1), date(2024, 12, 31))))
	svc := newTestService(t, repo)

	status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)
	require.NoError(t, err)

	require.NotNil(t, status.RecommendedRange)
	assert.Equal(t, date(2024, 12, 28), status.RecommendedRange.Start)
	assert.Equal(t, date(2025, 1, 8), status.RecommendedRange.End)
	assert.Equal(t, recommend.DirectionForward, status.Direction)
	assert.Equal(t, 8, status.Progress.ProgressPercentage)
}

func TestComputeProgressAndRecommendation_Complete(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	require.NoError(t, repo.SaveCheckedRange(context.Background(), scope,
		interval.MustNew(date(2024, 1, 1), date(2025, 1, 8))))
	svc := newTestService(t, repo)

	status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)
	require.NoError(t, err)

	assert.True(t, status.Progress.IsComplete)
	assert.Equal(t, 100, status.Progress.ProgressPercentage)
	assert.Nil(t, status.RecommendedRange)
}

func TestComputeProgressAndRecommendation_NoData(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)
	require.NoError(t, err)

	assert.False(t, status.Progress.HasData)
	assert.Equal(t, 0, status.Progress.ProgressPercentage)
	assert.Empty(t, status.Progress.Error)
	assert.Nil(t, status.RecommendedRange)
}

func TestComputeProgressAndRecommendation_PreferencesChangeChunk(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	require.NoError(t, repo.SavePreferences(context.Background(), scope, recommend.Preferences{DefaultChunkDays: 14}))
	svc := newTestService(t, repo)

	status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)
	require.NoError(t, err)

	assert.Equal(t, 14, status.ChunkDays)
	require.NotNil(t, status.RecommendedRange)
	assert.Equal(t, date(2024, 12, 25), status.RecommendedRange.Start)
}

func TestComputeProgressAndRecommendation_CollaboratorFailures(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*storage.MockRepository)
		op     string
	}{
		{
			name:   "account list unavailable",
			inject: func(m *storage.MockRepository) { m.ListAccountIDsErr = errStoreDown },
			op:     opListAccounts,
		},
		{
			name:   "account range unavailable",
			inject: func(m *storage.MockRepository) { m.GetAccountRangeErr = errStoreDown },
			op:     opGetAccountRange,
		},
		{
			name:   "preferences unavailable",
			inject: func(m *storage.MockRepository) { m.GetPreferencesErr = errStoreDown },
			op:     opGetPreferences,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := storage.NewMockRepository()
			seedYear(t, repo)
			tt.inject(repo)
			svc := newTestService(t, repo)

			status, err := svc.ComputeProgressAndRecommendation(context.Background(), scope)

			require.NoError(t, err, "collaborator failures are reported in Progress.Error")
			assert.Contains(t, status.Progress.Error, tt.op)
			assert.Contains(t, status.Progress.Error, "connection refused")
			assert.Nil(t, status.RecommendedRange)
			assert.False(t, status.Progress.IsComplete)
			assert.Zero(t, repo.SaveCheckedRangeCalls, "nothing may be committed")
		})
	}
}

func TestComputeProgressAndRecommendation_Cancelled(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	svc := newTestService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ComputeProgressAndRecommendation(ctx, scope)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanForCandidates_StreamsPages(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	svc := newTestService(t, repo, func(c *Config) { c.PageSize = 1 })

	window := interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))
	candidates, err := svc.ScanForCandidates(context.Background(), window)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "out", candidates[0].Outgoing.ID)
	assert.Equal(t, "in", candidates[0].Incoming.ID)
	assert.Equal(t, 1, candidates[0].DayDelta)
	assert.Greater(t, candidates[0].Confidence, 0.8)
	assert.Equal(t, 3, repo.GetTransactionsCalls, "three transactions, one per page")
}

func TestScanForCandidates_InvalidRange(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	_, err := svc.ScanForCandidates(context.Background(), interval.DateRange{Start: date(2025, 2, 1), End: date(2025, 1, 1)})

	var rangeErr *interval.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "scan range", rangeErr.Name)
}

func TestScanForCandidates_PageFailure(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	repo.FailGetTransactionsAfter = 1
	svc := newTestService(t, repo, func(c *Config) { c.PageSize = 1 })

	candidates, err := svc.ScanForCandidates(context.Background(), interval.MustNew(date(2024, 12, 9), date(2025, 1, 8)))

	assert.Nil(t, candidates)
	require.Error(t, err)
	var unavailable *CollaboratorUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, opGetTransactions, unavailable.Op)
}

func TestScanForCandidates_BreakerOpens(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	repo.GetTransactionsErr = errStoreDown
	svc := newTestService(t, repo, func(c *Config) {
		c.Breaker = BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 0.5, MinRequests: 1}
	})
	window := interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))

	_, err := svc.ScanForCandidates(context.Background(), window)
	require.ErrorIs(t, err, errStoreDown)

	_, err = svc.ScanForCandidates(context.Background(), window)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 1, repo.GetTransactionsCalls, "open breaker must not reach the store")
}

func TestCommitScannedRange_FirstCommit(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	svc := newTestService(t, repo)

	scanned := interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))
	got, err := svc.CommitScannedRange(context.Background(), scope, scanned)
	require.NoError(t, err)

	assert.True(t, got.Equal(scanned))
	require.NotNil(t, repo.LastCheckedRange)
	assert.True(t, repo.LastCheckedRange.Equal(scanned))
}

func TestCommitScannedRange_UnionWithChecked(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	ctx := context.Background()
	require.NoError(t, repo.SaveCheckedRange(ctx, scope, interval.MustNew(date(2024, 12, 1), date(2024, 12, 31))))
	svc := newTestService(t, repo)

	got, err := svc.CommitScannedRange(ctx, scope, interval.MustNew(date(2024, 12, 28), date(2025, 1, 8)))
	require.NoError(t, err)

	assert.Equal(t, date(2024, 12, 1), got.Start)
	assert.Equal(t, date(2025, 1, 8), got.End)
}

func TestCommitScannedRange_NonContiguous(t *testing.T) {
	ctx := context.Background()

	t.Run("gap holds data", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedYear(t, repo)
		require.NoError(t, repo.SaveCheckedRange(ctx, scope, interval.MustNew(date(2024, 12, 1), date(2024, 12, 31))))
		svc := newTestService(t, repo)

		_, err := svc.CommitScannedRange(ctx, scope, interval.MustNew(date(2024, 1, 1), date(2024, 2, 1)))

		assert.ErrorIs(t, err, ErrNonContiguous)
		assert.Equal(t, 1, repo.SaveCheckedRangeCalls, "only the seed write")
	})

	t.Run("gap outside data is bridged", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedYear(t, repo)
		require.NoError(t, repo.SaveCheckedRange(ctx, scope, interval.MustNew(date(2024, 12, 1), date(2025, 1, 8))))
		svc := newTestService(t, repo)

		got, err := svc.CommitScannedRange(ctx, scope, interval.MustNew(date(2025, 3, 1), date(2025, 3, 31)))

		require.NoError(t, err)
		assert.Equal(t, date(2024, 12, 1), got.Start)
		assert.Equal(t, date(2025, 3, 31), got.End)
	})
}

func TestCommitScannedRange_SaveFailureKeepsRange(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	repo.SaveCheckedRangeErr = errStoreDown
	svc := newTestService(t, repo)
	ctx := context.Background()

	scanned := interval.MustNew(date(2024, 12, 9), date(2025, 1, 8))
	got, err := svc.CommitScannedRange(ctx, scope, scanned)

	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.True(t, got.Equal(scanned), "computed range is returned for retry")

	// Retry once the store is back
	repo.SaveCheckedRangeErr = nil
	got, err = svc.CommitScannedRange(ctx, scope, scanned)
	require.NoError(t, err)
	assert.True(t, got.Equal(scanned))
}

func TestCommitScannedRange_InvalidRange(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(t, repo)

	_, err := svc.CommitScannedRange(context.Background(), scope, interval.DateRange{Start: date(2025, 1, 8), End: date(2024, 1, 1)})

	var rangeErr *interval.InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
	assert.Zero(t, repo.SaveCheckedRangeCalls)
}

func TestCommitScannedRange_ConcurrentCommitsSerialize(t *testing.T) {
	repo := storage.NewMockRepository()
	seedYear(t, repo)
	ctx := context.Background()
	require.NoError(t, repo.SaveCheckedRange(ctx, scope, interval.MustNew(date(2024, 12, 1), date(2024, 12, 31))))
	svc := newTestService(t, repo)

	ranges := []interval.DateRange{
		interval.MustNew(date(2024, 12, 28), date(2025, 1, 8)),
		interval.MustNew(date(2024, 11, 1), date(2024, 12, 4)),
		interval.MustNew(date(2024, 10, 5), date(2024, 11, 3)),
	}

	// The third range only touches the second, so every order that runs it
	// before the second is rejected. Run the first two concurrently, many
	// times over, then the third.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, r := range ranges[:2] {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CommitScannedRange(ctx, scope, r)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	_, err := svc.CommitScannedRange(ctx, scope, ranges[2])
	require.NoError(t, err)

	state, err := repo.GetTransferPreferences(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, state.CheckedRange)
	assert.Equal(t, date(2024, 10, 5), state.CheckedRange.Start)
	assert.Equal(t, date(2025, 1, 8), state.CheckedRange.End)
}

func TestLoadAccountRange_UnionsAccounts(t *testing.T) {
	repo := storage.NewMockRepository()
	ctx := context.Background()
	require.NoError(t, repo.SaveTransactions(ctx, []matcher.Transaction{
		tx("a1", "checking", "-1", date(2024, 3, 1)),
		tx("a2", "checking", "-1", date(2024, 9, 1)),
		tx("b1", "savings", "1", date(2024, 1, 15)),
		tx("c1", "card", "1", date(2024, 12, 31)),
	}))
	require.NoError(t, repo.UpsertAccount(ctx, &storage.Account{ID: "empty"}))
	svc := newTestService(t, repo)

	r, err := svc.loadAccountRange(ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, date(2024, 1, 15), r.Start)
	assert.Equal(t, date(2024, 12, 31), r.End)
}

// Walking recommended ranges to the end must terminate when transactions
// carry a time of day, and every transfer must fall inside some scanned range.
func TestReviewLoop_TimeOfDayTransactions(t *testing.T) {
	at := func(d, h, m int) time.Time { return time.Date(2025, 1, d, h, m, 0, 0, time.UTC) }

	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveTransactions(context.Background(), []matcher.Transaction{
		tx("paycheck", "checking", "2000.00", at(1, 9, 0)),
		tx("out-mid", "checking", "-80.00", at(10, 8, 0)),
		tx("in-mid", "savings", "80.00", at(10, 22, 30)),
		tx("out-last", "checking", "-250.00", at(20, 14, 0)),
		tx("in-last", "savings", "250.00", at(20, 15, 0)),
	}))
	svc := newTestService(t, repo, func(c *Config) { c.Recommend.ChunkDays = 7 })
	ctx := context.Background()

	found := map[string]bool{}
	var last *interval.DateRange
	for i := 0; ; i++ {
		require.Less(t, i, 10, "recommendations never ran out")

		status, err := svc.ComputeProgressAndRecommendation(ctx, scope)
		require.NoError(t, err)
		if status.RecommendedRange == nil {
			break
		}
		rec := *status.RecommendedRange
		if last != nil {
			require.False(t, rec.Equal(*last), "recommended %s twice", rec)
		}
		last = &rec

		candidates, err := svc.ScanForCandidates(ctx, rec)
		require.NoError(t, err)
		for _, c := range candidates {
			found[c.Key()] = true
		}

		_, err = svc.CommitScannedRange(ctx, scope, rec)
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]bool{"out-mid:in-mid": true, "out-last:in-last": true}, found)

	status, err := svc.ComputeProgressAndRecommendation(ctx, scope)
	require.NoError(t, err)
	assert.True(t, status.Progress.IsComplete)
	assert.False(t, status.Progress.CheckedOutOfBounds)
	require.NotNil(t, status.CheckedRange)
	assert.True(t, status.CheckedRange.Equal(*status.AccountRange))
}
