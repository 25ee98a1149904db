package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// Cycle is one pass of the review loop. A cycle with an ID is open and
// waits for Decide or Abandon. A cycle without an ID carries only status:
// either the scope is done (Complete), has no data, or Progress.Error says
// why scanning is not possible right now.
type Cycle struct {
	ID         string                      `json:"id,omitempty"`
	Status     string                      `json:"status,omitempty"`
	Complete   bool                        `json:"complete"`
	Candidates []matcher.TransferCandidate `json:"candidates"`
	StartedAt  time.Time                   `json:"started_at"`
	ExpiresAt  time.Time                   `json:"expires_at"`

	// CommittedRange is the checked range after a Decide that marked the
	// range checked.
	CommittedRange *interval.DateRange `json:"committed_range,omitempty"`

	Summary Status `json:"summary"`

	deciding bool
}

// Range is the window this cycle scanned, or nil.
func (c *Cycle) Range() *interval.DateRange {
	return c.Summary.RecommendedRange
}

// Decisions are the user's verdicts on a cycle's candidates, by candidate
// key. Candidates not named are discarded like rejected ones.
type Decisions struct {
	Accepted    []string `json:"accepted"`
	Rejected    []string `json:"rejected"`
	MarkChecked bool     `json:"mark_checked"`
}

// StartCycle runs the read-only half of a cycle for scope: progress,
// recommendation, fetch and match. The returned cycle is held open until it
// is decided, abandoned or expires.
//
// An open cycle for the same scope that nobody is deciding is closed as
// abandoned and replaced. ErrScopeBusy is returned only while a Decide or
// Abandon on that cycle is running.
func (s *Service) StartCycle(ctx context.Context, scope string) (*Cycle, error) {
	s.PurgeExpired(ctx)

	if err := s.replaceOpenCycle(ctx, scope); err != nil {
		return nil, err
	}

	status, err := s.ComputeProgressAndRecommendation(ctx, scope)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cycle := &Cycle{
		Summary:    *status,
		StartedAt:  now,
		Candidates: []matcher.TransferCandidate{},
	}

	if status.Progress.Error != "" {
		return cycle, nil
	}
	if status.RecommendedRange == nil {
		cycle.Complete = status.Progress.HasData
		return cycle, nil
	}

	candidates, err := s.ScanForCandidates(ctx, *status.RecommendedRange)
	if err != nil {
		if !IsUnavailable(err) {
			return nil, err
		}
		cycle.Summary.Progress.Error = err.Error()
		cycle.Summary.RecommendedRange = nil
		cycle.Summary.Direction = ""
		return cycle, nil
	}

	cycle.ID = uuid.NewString()
	cycle.Status = storage.CycleStatusOpen
	cycle.Candidates = candidates
	cycle.ExpiresAt = now.Add(s.config.CycleTTL)

	// A concurrent StartCycle may have registered one in the meantime.
	s.cyclesMutex.Lock()
	replaced, err := s.takeOpenCycleLocked(scope)
	if err != nil {
		s.cyclesMutex.Unlock()
		return nil, err
	}
	s.cycles[cycle.ID] = cycle
	s.cyclesMutex.Unlock()
	s.closeReplaced(ctx, replaced, cycle.ID)

	s.record(ctx, cycle)
	s.metrics.CycleStarted(string(status.Direction), len(candidates))
	s.logger.Info("scan cycle started",
		"cycle_id", cycle.ID,
		"scope", scope,
		"range", status.RecommendedRange.String(),
		"direction", status.Direction,
		"chunk_days", status.ChunkDays,
		"candidates", len(candidates),
	)

	return cycle.snapshot(), nil
}

// Decide applies the user's decisions to an open cycle. Accepted candidates
// are handed to the link writer; with MarkChecked the scanned range is
// committed. If either write fails the cycle stays open and Decide can be
// retried with the same decisions.
func (s *Service) Decide(ctx context.Context, cycleID string, d Decisions) (*Cycle, error) {
	cycle, err := s.beginDecide(cycleID)
	if err != nil {
		return nil, err
	}
	defer s.endDecide(cycle)

	accepted, err := cycle.resolve(d)
	if err != nil {
		return nil, err
	}

	if len(accepted) > 0 {
		links := make([]storage.TransferLink, 0, len(accepted))
		for _, c := range accepted {
			links = append(links, storage.TransferLink{
				OutgoingID: c.Outgoing.ID,
				IncomingID: c.Incoming.ID,
				Amount:     decimal.Min(c.Outgoing.Amount.Abs(), c.Incoming.Amount.Abs()),
				Confidence: c.Confidence,
				CycleID:    cycle.ID,
			})
		}
		if err := s.call(ctx, opSaveTransferLink, func() error {
			return s.store.SaveTransferLinks(ctx, links)
		}); err != nil {
			return nil, err
		}
		s.metrics.LinksHandedOff(len(links))
	}

	status := storage.CycleStatusReviewed
	var committed *interval.DateRange
	if d.MarkChecked {
		merged, err := s.CommitScannedRange(ctx, cycle.Summary.Scope, *cycle.Range())
		if err != nil {
			return nil, err
		}
		committed = interval.Ptr(merged)
		status = storage.CycleStatusCommitted
	}

	rejected := len(cycle.Candidates) - len(accepted)
	s.finish(ctx, cycle, status, len(accepted), rejected, func(c *Cycle) {
		c.CommittedRange = committed
	})

	s.logger.Info("scan cycle decided",
		"cycle_id", cycle.ID,
		"scope", cycle.Summary.Scope,
		"accepted", len(accepted),
		"rejected", rejected,
		"mark_checked", d.MarkChecked,
	)

	result := cycle.snapshot()
	result.Status = status
	result.CommittedRange = committed
	return result, nil
}

// Abandon drops an open cycle. Nothing about the scope's checked range is
// persisted, so the next cycle recommends the same range again.
func (s *Service) Abandon(ctx context.Context, cycleID string) error {
	cycle, err := s.beginDecide(cycleID)
	if err != nil {
		return err
	}
	defer s.endDecide(cycle)

	s.finish(ctx, cycle, storage.CycleStatusAbandoned, 0, 0, nil)
	s.logger.Info("scan cycle abandoned", "cycle_id", cycleID, "scope", cycle.Summary.Scope)
	return nil
}

// GetCycle returns an open cycle.
func (s *Service) GetCycle(ctx context.Context, cycleID string) (*Cycle, error) {
	s.PurgeExpired(ctx)

	s.cyclesMutex.Lock()
	defer s.cyclesMutex.Unlock()

	cycle, ok := s.cycles[cycleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCycleNotFound, cycleID)
	}
	return cycle.snapshot(), nil
}

// PurgeExpired closes open cycles past their TTL and returns how many it
// closed. Cycles being decided are left alone.
func (s *Service) PurgeExpired(ctx context.Context) int {
	now := s.now()

	s.cyclesMutex.Lock()
	var expired []*Cycle
	for id, cycle := range s.cycles {
		if cycle.deciding || now.Before(cycle.ExpiresAt) {
			continue
		}
		delete(s.cycles, id)
		expired = append(expired, cycle)
	}
	s.cyclesMutex.Unlock()

	for _, cycle := range expired {
		s.complete(ctx, cycle, storage.CycleStatusExpired, 0, 0)
		s.logger.Debug("scan cycle expired", "cycle_id", cycle.ID, "scope", cycle.Summary.Scope)
	}
	return len(expired)
}

// RunJanitor purges expired cycles every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.PurgeExpired(ctx); n > 0 {
				s.logger.Info("expired stale scan cycles", "count", n)
			}
		}
	}
}

// replaceOpenCycle closes scope's idle open cycle as abandoned.
func (s *Service) replaceOpenCycle(ctx context.Context, scope string) error {
	s.cyclesMutex.Lock()
	replaced, err := s.takeOpenCycleLocked(scope)
	s.cyclesMutex.Unlock()
	if err != nil {
		return err
	}
	s.closeReplaced(ctx, replaced, "")
	return nil
}

// takeOpenCycleLocked removes and returns scope's open cycle, or nil if it
// has none. A cycle being decided is left in place and reported busy.
func (s *Service) takeOpenCycleLocked(scope string) (*Cycle, error) {
	for id, cycle := range s.cycles {
		if cycle.Summary.Scope != scope {
			continue
		}
		if cycle.deciding {
			return nil, fmt.Errorf("%w: cycle %s for scope %s is being decided", ErrScopeBusy, id, scope)
		}
		delete(s.cycles, id)
		cycle.Status = storage.CycleStatusAbandoned
		return cycle, nil
	}
	return nil, nil
}

func (s *Service) closeReplaced(ctx context.Context, cycle *Cycle, by string) {
	if cycle == nil {
		return
	}
	s.complete(ctx, cycle, storage.CycleStatusAbandoned, 0, 0)
	s.logger.Info("scan cycle replaced",
		"cycle_id", cycle.ID,
		"scope", cycle.Summary.Scope,
		"replaced_by", by,
	)
}

// beginDecide claims an open cycle so only one Decide or Abandon runs on it.
func (s *Service) beginDecide(cycleID string) (*Cycle, error) {
	s.cyclesMutex.Lock()
	defer s.cyclesMutex.Unlock()

	cycle, ok := s.cycles[cycleID]
	if !ok || !s.now().Before(cycle.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrCycleNotFound, cycleID)
	}
	if cycle.deciding {
		return nil, fmt.Errorf("%w: cycle %s is being decided", ErrScopeBusy, cycleID)
	}
	cycle.deciding = true
	return cycle, nil
}

func (s *Service) endDecide(cycle *Cycle) {
	s.cyclesMutex.Lock()
	defer s.cyclesMutex.Unlock()
	cycle.deciding = false
}

// finish removes a decided cycle and records how it ended.
func (s *Service) finish(ctx context.Context, cycle *Cycle, status string, accepted, rejected int, mutate func(*Cycle)) {
	s.cyclesMutex.Lock()
	delete(s.cycles, cycle.ID)
	cycle.Status = status
	if mutate != nil {
		mutate(cycle)
	}
	s.cyclesMutex.Unlock()

	s.complete(ctx, cycle, status, accepted, rejected)
}

// record writes the cycle to history. History is best effort: a failure is
// logged and does not fail the cycle.
func (s *Service) record(ctx context.Context, cycle *Cycle) {
	r := cycle.Range()
	err := s.store.StartScanCycle(ctx, &storage.ScanCycle{
		ID:             cycle.ID,
		Scope:          cycle.Summary.Scope,
		RangeStart:     r.Start,
		RangeEnd:       r.End,
		Direction:      string(cycle.Summary.Direction),
		ChunkDays:      cycle.Summary.ChunkDays,
		CandidateCount: len(cycle.Candidates),
		Status:         storage.CycleStatusOpen,
		StartedAt:      cycle.StartedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record scan cycle", "cycle_id", cycle.ID, "error", err)
	}
}

func (s *Service) complete(ctx context.Context, cycle *Cycle, status string, accepted, rejected int) {
	s.metrics.CycleFinished(status)
	if err := s.store.CompleteScanCycle(ctx, cycle.ID, status, accepted, rejected); err != nil {
		s.logger.Warn("failed to record scan cycle outcome",
			"cycle_id", cycle.ID,
			"status", status,
			"error", err,
		)
	}
}

// resolve validates decisions against the cycle's candidates and returns
// the accepted ones in candidate order.
func (c *Cycle) resolve(d Decisions) ([]matcher.TransferCandidate, error) {
	known := make(map[string]bool, len(c.Candidates))
	for _, cand := range c.Candidates {
		known[cand.Key()] = true
	}

	accept := make(map[string]bool, len(d.Accepted))
	for _, key := range d.Accepted {
		if !known[key] {
			return nil, fmt.Errorf("%w: unknown candidate %q", ErrInvalidDecision, key)
		}
		accept[key] = true
	}
	for _, key := range d.Rejected {
		if !known[key] {
			return nil, fmt.Errorf("%w: unknown candidate %q", ErrInvalidDecision, key)
		}
		if accept[key] {
			return nil, fmt.Errorf("%w: candidate %q is both accepted and rejected", ErrInvalidDecision, key)
		}
	}

	var accepted []matcher.TransferCandidate
	for _, cand := range c.Candidates {
		if accept[cand.Key()] {
			accepted = append(accepted, cand)
		}
	}
	return accepted, nil
}

func (c *Cycle) snapshot() *Cycle {
	candidates := make([]matcher.TransferCandidate, len(c.Candidates))
	copy(candidates, c.Candidates)

	cp := &Cycle{
		ID:             c.ID,
		Status:         c.Status,
		Complete:       c.Complete,
		Candidates:     candidates,
		StartedAt:      c.StartedAt,
		ExpiresAt:      c.ExpiresAt,
		CommittedRange: c.CommittedRange,
		Summary:        c.Summary,
	}
	return cp
}
