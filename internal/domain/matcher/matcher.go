// Package matcher pairs outgoing and incoming transactions from different
// accounts into transfer candidates.
//
// The matcher uses these criteria:
//   - Legs must be on different accounts with opposite signs
//   - Dates must be within DayTolerance days
//   - Magnitudes must match within the amount tolerance
//   - Each transaction appears in at most one candidate
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	for c := range m.FindCandidates(slices.Values(txs), window) {
//		fmt.Println(c.Outgoing.ID, "->", c.Incoming.ID, c.Confidence)
//	}
package matcher

import (
	"iter"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

var one = decimal.NewFromInt(1)

// Matcher finds transfer candidates
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config) *Matcher {
	if config.DayTolerance < 0 {
		config.DayTolerance = 0
	}
	return &Matcher{
		config: config,
	}
}

// FindCandidates matches transactions with an absolute amount tolerance only.
func FindCandidates(txs iter.Seq[Transaction], window interval.DateRange, amountTolerance decimal.Decimal, dayTolerance int) iter.Seq[TransferCandidate] {
	return NewMatcher(Config{
		AmountTolerance: amountTolerance,
		DayTolerance:    dayTolerance,
	}).FindCandidates(txs, window)
}

// FindCandidates returns candidates ordered by descending confidence, then
// by outgoing date. txs is read once, when the result is first iterated, so
// the result must not be iterated more than once when txs is a stream.
// Transactions outside window, zero amounts and repeated IDs are ignored.
func (m *Matcher) FindCandidates(txs iter.Seq[Transaction], window interval.DateRange) iter.Seq[TransferCandidate] {
	return func(yield func(TransferCandidate) bool) {
		for _, c := range m.rank(txs, window) {
			if !yield(c) {
				return
			}
		}
	}
}

func (m *Matcher) rank(txs iter.Seq[Transaction], window interval.DateRange) []TransferCandidate {
	var outgoing, incoming []Transaction
	seen := make(map[string]bool)

	for tx := range txs {
		if seen[tx.ID] {
			continue
		}
		seen[tx.ID] = true

		tx = tx.Normalized()
		if !window.Contains(tx.Date) {
			continue
		}
		switch tx.Amount.Sign() {
		case -1:
			outgoing = append(outgoing, tx)
		case 1:
			incoming = append(incoming, tx)
		}
	}

	if len(outgoing) == 0 || len(incoming) == 0 {
		return nil
	}

	sort.Slice(incoming, func(a, b int) bool {
		return incoming[a].Date.Before(incoming[b].Date)
	})

	maxGap := interval.Days(m.config.DayTolerance)
	var pairs []TransferCandidate

	for _, o := range outgoing {
		// First incoming leg that is not too early.
		from := sort.Search(len(incoming), func(k int) bool {
			return !incoming[k].Date.Before(o.Date.Add(-maxGap))
		})

		for _, in := range incoming[from:] {
			if in.Date.Sub(o.Date) > maxGap {
				break
			}
			if in.AccountID == o.AccountID {
				continue
			}
			if c, ok := m.score(o, in); ok {
				pairs = append(pairs, c)
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		return less(pairs[a], pairs[b])
	})

	// Greedy: highest confidence first, each transaction used once.
	used := make(map[string]bool)
	result := make([]TransferCandidate, 0, len(pairs))
	for _, c := range pairs {
		if used[c.Outgoing.ID] || used[c.Incoming.ID] {
			continue
		}
		used[c.Outgoing.ID] = true
		used[c.Incoming.ID] = true
		result = append(result, c)
	}

	return result
}

// score returns the candidate for o and in if their amounts match.
func (m *Matcher) score(o, in Transaction) (TransferCandidate, bool) {
	tolerance, ok := m.tolerance(o, in)
	if !ok {
		return TransferCandidate{}, false
	}

	amountDelta := o.Amount.Abs().Sub(in.Amount).Abs()
	if amountDelta.GreaterThan(tolerance) {
		return TransferCandidate{}, false
	}

	dayDelta := dayDistance(o.Date, in.Date)

	amountScore := 1 - amountDelta.Div(decimal.Max(tolerance, one)).InexactFloat64()
	dateScore := 1 - float64(dayDelta)/float64(max(m.config.DayTolerance, 1))

	return TransferCandidate{
		Outgoing:    o,
		Incoming:    in,
		AmountDelta: amountDelta,
		DayDelta:    dayDelta,
		Confidence:  (clamp01(amountScore) + clamp01(dateScore)) / 2,
	}, true
}

// tolerance is the allowed magnitude difference for a pair. Pairs in
// different currencies only match on relative tolerance.
func (m *Matcher) tolerance(o, in Transaction) (decimal.Decimal, bool) {
	relative := o.Amount.Abs().Mul(m.config.RelativeTolerance)

	if o.Currency != in.Currency {
		if !m.config.RelativeTolerance.IsPositive() {
			return decimal.Zero, false
		}
		return relative, true
	}

	return decimal.Max(m.config.AmountTolerance, relative), true
}

func dayDistance(a, b time.Time) int {
	if b.Before(a) {
		a, b = b, a
	}
	return interval.DayDiff(a, b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func less(a, b TransferCandidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.Outgoing.Date.Equal(b.Outgoing.Date) {
		return a.Outgoing.Date.Before(b.Outgoing.Date)
	}
	if !a.Incoming.Date.Equal(b.Incoming.Date) {
		return a.Incoming.Date.Before(b.Incoming.Date)
	}
	if a.Outgoing.ID != b.Outgoing.ID {
		return a.Outgoing.ID < b.Outgoing.ID
	}
	return a.Incoming.ID < b.Incoming.ID
}
