// Package recommend picks the next date window to scan for transfers.
//
// The first window is anchored at the most recent data. Later windows extend
// the checked range forward until it reaches the newest transaction, then
// backward until it reaches the oldest one. Each extension re-scans
// overlapDays of already-checked history so a transfer whose two legs straddle
// a chunk boundary is still seen whole in at least one window.
//
// Example usage:
//
//	next, err := recommend.RecommendNextRange(account, checked, 30, 3)
//	if next == nil {
//		// nothing left to scan
//	}
package recommend

import (
	"errors"
	"fmt"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

const (
	DefaultChunkDays   = 30
	DefaultOverlapDays = 3
)

// ErrInvalidChunking is returned for chunk/overlap settings that cannot make progress.
var ErrInvalidChunking = errors.New("invalid chunking")

// Direction says which way a recommendation extends the checked range.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionInitial  Direction = "initial"
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Recommendation is a range plus the direction it was derived from.
type Recommendation struct {
	Range     interval.DateRange `json:"range"`
	Direction Direction          `json:"direction"`
}

// RecommendNextRange returns the next range to scan, or nil when the checked
// range already covers the account range or there is no account data.
func RecommendNextRange(account, checked *interval.DateRange, chunkDays, overlapDays int) (*interval.DateRange, error) {
	rec, err := Next(account, checked, chunkDays, overlapDays)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.Range, nil
}

// Next is RecommendNextRange with the direction of the extension.
func Next(account, checked *interval.DateRange, chunkDays, overlapDays int) (*Recommendation, error) {
	if err := validateChunking(chunkDays, overlapDays); err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	if err := account.ValidateNamed("account range"); err != nil {
		return nil, err
	}
	if checked != nil {
		if err := checked.ValidateNamed("checked range"); err != nil {
			return nil, err
		}
	}

	chunk := interval.Days(chunkDays)
	overlap := interval.Days(overlapDays)

	if checked == nil {
		end := account.End
		start := interval.Clamp(end.Add(-chunk), account.Start, end)
		return &Recommendation{
			Range:     interval.DateRange{Start: start, End: end},
			Direction: DirectionInitial,
		}, nil
	}

	if interval.Covers(*checked, *account) {
		return nil, nil
	}

	if checked.End.Before(account.End) {
		start := interval.Max(account.Start, checked.End.Add(-overlap))
		end := interval.Min(start.Add(chunk), account.End)
		return &Recommendation{
			Range:     interval.DateRange{Start: start, End: end},
			Direction: DirectionForward,
		}, nil
	}

	if checked.Start.After(account.Start) {
		end := interval.Min(account.End, checked.Start.Add(overlap))
		start := interval.Max(account.Start, end.Add(-chunk))
		return &Recommendation{
			Range:     interval.DateRange{Start: start, End: end},
			Direction: DirectionBackward,
		}, nil
	}

	return nil, nil
}

func validateChunking(chunkDays, overlapDays int) error {
	if chunkDays <= 0 {
		return fmt.Errorf("%w: chunk days must be positive, got %d", ErrInvalidChunking, chunkDays)
	}
	if overlapDays < 0 {
		return fmt.Errorf("%w: overlap days must not be negative, got %d", ErrInvalidChunking, overlapDays)
	}
	if overlapDays >= chunkDays {
		return fmt.Errorf("%w: overlap (%d) must be smaller than chunk (%d)", ErrInvalidChunking, overlapDays, chunkDays)
	}
	return nil
}
