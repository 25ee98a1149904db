package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, scope string, commit bool) {
	mode := "PREVIEW"
	if commit {
		mode = "COMMIT"
	}
	fmt.Fprintf(w, "transfer-scan: %s (%s mode)\n", scope, mode)
}

// PrintStatus prints progress and the recommended range
func PrintStatus(w io.Writer, s review.Status) {
	p := s.Progress
	switch {
	case p.Error != "":
		fmt.Fprintf(w, "Progress unavailable: %s\n", p.Error)
		return
	case !p.HasData:
		fmt.Fprintln(w, "No transactions yet. Nothing to scan.")
		return
	}

	fmt.Fprintf(w, "Accounts: %s | Checked: %d/%d days (%d%%)\n",
		s.AccountRange, p.CheckedDays, p.TotalDays, p.ProgressPercentage)
	if p.CheckedOutOfBounds {
		fmt.Fprintln(w, "Note: checked range extends past the account data")
	}

	if s.RecommendedRange == nil {
		fmt.Fprintln(w, "All transactions have been checked for transfers.")
		return
	}
	fmt.Fprintf(w, "Next: %s (%s, %d-day chunk)\n", s.RecommendedRange, s.Direction, s.ChunkDays)
}

// PrintCandidates prints a table of transfer candidates
func PrintCandidates(w io.Writer, candidates []matcher.TransferCandidate) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	if len(candidates) == 0 {
		fmt.Fprintln(w, "No transfer candidates found.")
		return
	}

	fmt.Fprintf(w, "%d transfer candidate(s):\n", len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(w, "  %-24s %s %-12s %10s -> %s %-12s %10s  %3.0f%%\n",
			c.Key(),
			c.Outgoing.Date.Format(interval.DateLayout), c.Outgoing.AccountID, c.Outgoing.Amount.StringFixed(2),
			c.Incoming.Date.Format(interval.DateLayout), c.Incoming.AccountID, c.Incoming.Amount.StringFixed(2),
			c.Confidence*100,
		)
	}
}

// PrintDecision prints how a cycle was closed
func PrintDecision(w io.Writer, c *review.Cycle, accepted int) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "Summary: Linked=%d Discarded=%d\n", accepted, len(c.Candidates)-accepted)
	if c.CommittedRange != nil {
		fmt.Fprintf(w, "Checked range is now %s\n", c.CommittedRange)
	} else {
		fmt.Fprintln(w, "Range not marked checked. Re-run with -commit to record it.")
	}
}
