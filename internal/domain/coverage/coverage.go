// Package coverage reports how much of an account's observed transaction
// history has already been scanned for transfers.
package coverage

import (
	"math"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

// Progress is derived scan progress. It is never persisted.
type Progress struct {
	HasData            bool   `json:"has_data"`
	TotalDays          int    `json:"total_days"`
	CheckedDays        int    `json:"checked_days"`
	ProgressPercentage int    `json:"progress_percentage"`
	IsComplete         bool   `json:"is_complete"`
	Error              string `json:"error,omitempty"`

	// CheckedOutOfBounds is set when the stored checked range reaches past the
	// observed data, usually because transactions were deleted after a scan.
	CheckedOutOfBounds bool `json:"checked_out_of_bounds,omitempty"`
}

// RemainingDays is the number of account days not yet checked.
func (p Progress) RemainingDays() int {
	if p.CheckedDays >= p.TotalDays {
		return 0
	}
	return p.TotalDays - p.CheckedDays
}

// ComputeProgress compares the checked range against the account range.
// A nil account range means the account has no transactions yet.
func ComputeProgress(account, checked *interval.DateRange) Progress {
	if account == nil {
		return Progress{}
	}

	p := Progress{
		HasData:   true,
		TotalDays: account.Days(),
	}

	var overlap interval.DateRange
	intersects := false
	if checked != nil {
		overlap, intersects = interval.Intersect(*checked, *account)
		p.CheckedOutOfBounds = checked.Start.Before(account.Start) || checked.End.After(account.End)
	}

	// Single-instant account: all or nothing.
	if p.TotalDays == 0 {
		if intersects {
			p.ProgressPercentage = 100
			p.IsComplete = true
		}
		return p
	}

	if intersects {
		p.CheckedDays = overlap.Days()
	}

	pct := math.Round(float64(p.CheckedDays) / float64(p.TotalDays) * 100)
	p.ProgressPercentage = int(math.Max(0, math.Min(100, pct)))
	p.IsComplete = p.CheckedDays >= p.TotalDays

	return p
}
