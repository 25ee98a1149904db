package recommend

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transferscan/internal/domain/coverage"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rng(start, end time.Time) *interval.DateRange {
	return interval.Ptr(interval.MustNew(start, end))
}

func TestRecommendNextRange_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		account   *interval.DateRange
		checked   *interval.DateRange
		wantNil   bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "A: nothing checked anchors at latest data",
			account:   rng(date(2024, 1, 1), date(2025, 1, 8)),
			wantStart: date(2024, 12, 9),
			wantEnd:   date(2025, 1, 8),
		},
		{
			name:      "B: forward extension with overlap",
			account:   rng(date(2024, 1, 1), date(2025, 1, 8)),
			checked:   rng(date(2024, 12, 1), date(2024, 12, 31)),
			wantStart: date(2024, 12, 28),
			wantEnd:   date(2025, 1, 8),
		},
		{
			name:    "C: fully checked",
			account: rng(date(2024, 1, 1), date(2024, 12, 31)),
			checked: rng(date(2024, 1, 1), date(2024, 12, 31)),
			wantNil: true,
		},
		{
			name:    "D: no account data",
			wantNil: true,
		},
		{
			name:      "backward once forward is exhausted",
			account:   rng(date(2024, 1, 1), date(2025, 1, 8)),
			checked:   rng(date(2024, 12, 9), date(2025, 1, 8)),
			wantStart: date(2024, 11, 12),
			wantEnd:   date(2024, 12, 12),
		},
		{
			name:      "backward clamps to account start",
			account:   rng(date(2024, 1, 1), date(2025, 1, 8)),
			checked:   rng(date(2024, 1, 10), date(2025, 1, 8)),
			wantStart: date(2024, 1, 1),
			wantEnd:   date(2024, 1, 13),
		},
		{
			name:      "short account yields short initial range",
			account:   rng(date(2024, 12, 20), date(2025, 1, 8)),
			wantStart: date(2024, 12, 20),
			wantEnd:   date(2025, 1, 8),
		},
		{
			name:      "checked range entirely before data",
			account:   rng(date(2024, 6, 1), date(2024, 12, 31)),
			checked:   rng(date(2023, 1, 1), date(2023, 2, 1)),
			wantStart: date(2024, 6, 1),
			wantEnd:   date(2024, 7, 1),
		},
		{
			name:      "checked range entirely after data",
			account:   rng(date(2024, 6, 1), date(2024, 12, 31)),
			checked:   rng(date(2025, 3, 1), date(2025, 4, 1)),
			wantStart: date(2024, 12, 1),
			wantEnd:   date(2024, 12, 31),
		},
		{
			name:    "stale checked range wider than data",
			account: rng(date(2024, 6, 1), date(2024, 6, 30)),
			checked: rng(date(2024, 1, 1), date(2024, 12, 31)),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecommendNextRange(tt.account, tt.checked, 30, 3)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			assert.Equal(t, tt.wantStart, got.Start, "start")
			assert.Equal(t, tt.wantEnd, got.End, "end")
		})
	}
}

func TestRecommendNextRange_Direction(t *testing.T) {
	account := rng(date(2024, 1, 1), date(2025, 1, 8))

	rec, err := Next(account, nil, 30, 3)
	require.NoError(t, err)
	assert.Equal(t, DirectionInitial, rec.Direction)

	rec, err = Next(account, rng(date(2024, 12, 1), date(2024, 12, 31)), 30, 3)
	require.NoError(t, err)
	assert.Equal(t, DirectionForward, rec.Direction)

	rec, err = Next(account, rng(date(2024, 12, 1), date(2025, 1, 8)), 30, 3)
	require.NoError(t, err)
	assert.Equal(t, DirectionBackward, rec.Direction)
}

func TestRecommendNextRange_Idempotent(t *testing.T) {
	account := rng(date(2024, 1, 1), date(2025, 1, 8))
	checked := rng(date(2024, 12, 1), date(2024, 12, 31))

	first, err := RecommendNextRange(account, checked, 30, 3)
	require.NoError(t, err)
	second, err := RecommendNextRange(account, checked, 30, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRecommendNextRange_InvalidInput(t *testing.T) {
	bad := &interval.DateRange{Start: date(2024, 2, 1), End: date(2024, 1, 1)}
	good := rng(date(2024, 1, 1), date(2024, 12, 31))

	t.Run("account range start after end", func(t *testing.T) {
		_, err := RecommendNextRange(bad, nil, 30, 3)
		var rangeErr *interval.InvalidRangeError
		require.True(t, errors.As(err, &rangeErr))
		assert.Contains(t, err.Error(), "account range")
	})

	t.Run("checked range start after end", func(t *testing.T) {
		_, err := RecommendNextRange(good, bad, 30, 3)
		var rangeErr *interval.InvalidRangeError
		require.True(t, errors.As(err, &rangeErr))
		assert.Contains(t, err.Error(), "checked range")
	})

	t.Run("chunking that cannot progress", func(t *testing.T) {
		_, err := RecommendNextRange(good, nil, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidChunking)

		_, err = RecommendNextRange(good, nil, 3, 3)
		assert.ErrorIs(t, err, ErrInvalidChunking)

		_, err = RecommendNextRange(good, nil, 30, -1)
		assert.ErrorIs(t, err, ErrInvalidChunking)
	})
}

// simulate runs recommend/commit cycles until the engine reports completion.
func simulate(t *testing.T, account *interval.DateRange, chunkDays, overlapDays int) []interval.DateRange {
	t.Helper()

	var checked *interval.DateRange
	var history []interval.DateRange

	for i := 0; i < 1000; i++ {
		next, err := RecommendNextRange(account, checked, chunkDays, overlapDays)
		require.NoError(t, err)
		if next == nil {
			return history
		}

		assert.False(t, next.Start.Before(account.Start), "start before account start: %s", next)
		assert.False(t, next.End.After(account.End), "end after account end: %s", next)

		if checked != nil {
			overlap, ok := interval.Intersect(*next, *checked)
			require.True(t, ok, "recommendation %s does not touch checked %s", next, checked)
			want := overlapDays
			if d := checked.Days(); d < want {
				want = d
			}
			assert.GreaterOrEqual(t, overlap.Days(), want, "overlap for %s against %s", next, checked)

			union, ok := interval.Union(*checked, *next)
			require.True(t, ok)
			checked = &union
		} else {
			checked = interval.Ptr(*next)
		}
		history = append(history, *next)
	}

	t.Fatalf("no completion after %d cycles", len(history))
	return nil
}

func TestRecommendNextRange_ConvergesToFullCoverage(t *testing.T) {
	account := rng(date(2023, 3, 17), date(2025, 1, 8))

	history := simulate(t, account, 30, 3)

	require.NotEmpty(t, history)
	assert.Equal(t, DirectionInitial, mustDirection(t, account, nil, history[0]))

	full := history[0]
	for _, r := range history[1:] {
		full = interval.Hull(full, r)
	}
	assert.True(t, interval.Covers(full, *account))

	p := coverage.ComputeProgress(account, &full)
	assert.True(t, p.IsComplete)
	assert.Equal(t, 100, p.ProgressPercentage)
}

func TestRecommendNextRange_ForwardThenBackward(t *testing.T) {
	account := rng(date(2024, 1, 1), date(2025, 1, 8))

	// Checked a window in the middle: forward first until the end is reached.
	checked := rng(date(2024, 6, 1), date(2024, 7, 1))
	var dirs []Direction
	for i := 0; i < 100; i++ {
		rec, err := Next(account, checked, 30, 3)
		require.NoError(t, err)
		if rec == nil {
			break
		}
		dirs = append(dirs, rec.Direction)
		union, ok := interval.Union(*checked, rec.Range)
		require.True(t, ok)
		checked = &union
	}

	require.NotEmpty(t, dirs)
	seenBackward := false
	for _, d := range dirs {
		if d == DirectionBackward {
			seenBackward = true
			continue
		}
		assert.False(t, seenBackward, "forward recommendation after backward started")
		assert.Equal(t, DirectionForward, d)
	}
	assert.True(t, seenBackward)
}

func mustDirection(t *testing.T, account, checked *interval.DateRange, want interval.DateRange) Direction {
	t.Helper()
	rec, err := Next(account, checked, 30, 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Range.Equal(want))
	return rec.Direction
}
