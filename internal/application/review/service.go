// Package review runs transfer scan cycles: report progress, recommend the
// next window, find candidates in it, and persist the checked range once the
// user has reviewed them.
//
// The service is the only writer of a scope's checked range. Commits for one
// scope are serialized, and each one re-reads the stored range first, so two
// concurrent cycles cannot lose each other's update.
package review

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/transferscan/internal/domain/coverage"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/metrics"
)

// Defaults for Config fields left zero
const (
	DefaultPageSize = 500
	DefaultCycleTTL = 30 * time.Minute

	// accountRangeConcurrency bounds parallel account range lookups
	accountRangeConcurrency = 8
)

// Config holds review service configuration
type Config struct {
	Recommend recommend.Config
	Matching  matcher.Config
	Breaker   BreakerConfig
	PageSize  int           // Transactions per fetched page
	CycleTTL  time.Duration // How long an unreviewed cycle stays open
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Recommend: recommend.DefaultConfig(),
		Matching:  matcher.DefaultConfig(),
		Breaker:   DefaultBreakerConfig(),
		PageSize:  DefaultPageSize,
		CycleTTL:  DefaultCycleTTL,
	}
}

// Status is the cheap, always-safe part of a cycle: progress plus the next
// range to scan. RecommendedRange is nil when the scope is fully checked, has
// no data, or Progress.Error is set.
type Status struct {
	Scope            string              `json:"scope"`
	AccountRange     *interval.DateRange `json:"account_range,omitempty"`
	CheckedRange     *interval.DateRange `json:"checked_range,omitempty"`
	Progress         coverage.Progress   `json:"progress"`
	RecommendedRange *interval.DateRange `json:"recommended_range,omitempty"`
	Direction        recommend.Direction `json:"direction,omitempty"`
	ChunkDays        int                 `json:"chunk_days"`
}

// Service runs transfer review cycles
type Service struct {
	store   Store
	engine  *recommend.Engine
	matcher *matcher.Matcher
	config  Config
	logger  *slog.Logger
	metrics *metrics.Collector
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	// Scope-level locking for checked range commits
	scopeLocks map[string]*sync.Mutex
	locksMutex sync.Mutex

	// Open cycles awaiting decisions
	cycles      map[string]*Cycle
	cyclesMutex sync.Mutex
}

// NewService creates a new review service. logger and collector may be nil.
func NewService(store Store, cfg Config, logger *slog.Logger, collector *metrics.Collector) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.CycleTTL <= 0 {
		cfg.CycleTTL = DefaultCycleTTL
	}

	return &Service{
		store:      store,
		engine:     recommend.NewEngine(cfg.Recommend),
		matcher:    matcher.NewMatcher(cfg.Matching),
		config:     cfg,
		logger:     logger,
		metrics:    collector,
		breaker:    newBreaker(cfg.Breaker, logger),
		now:        time.Now,
		scopeLocks: make(map[string]*sync.Mutex),
		cycles:     make(map[string]*Cycle),
	}
}

// ComputeProgressAndRecommendation loads the scope's state and reports
// progress and the next range to scan.
//
// A failed read is not returned as an error: it is reported in
// Progress.Error with no recommended range. Only programmer errors (an
// invalid stored range, unusable chunk settings) and cancellation are
// returned.
func (s *Service) ComputeProgressAndRecommendation(ctx context.Context, scope string) (*Status, error) {
	status := &Status{Scope: scope}

	account, err := s.loadAccountRange(ctx)
	if err != nil {
		return s.unavailable(status, err)
	}

	state, err := s.loadScanState(ctx, scope)
	if err != nil {
		return s.unavailable(status, err)
	}

	status.AccountRange = account
	status.CheckedRange = state.CheckedRange
	status.Progress = coverage.ComputeProgress(account, state.CheckedRange)
	status.ChunkDays = s.engine.ChunkDaysFor(&state.Preferences)

	rec, err := recommend.Next(account, state.CheckedRange, status.ChunkDays, s.engine.Config().OverlapDays)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		status.RecommendedRange = interval.Ptr(rec.Range)
		status.Direction = rec.Direction
	}

	return status, nil
}

// unavailable turns a collaborator failure into Progress.Error. Anything
// else, cancellation included, is returned as is.
func (s *Service) unavailable(status *Status, err error) (*Status, error) {
	if !IsUnavailable(err) {
		return nil, err
	}
	status.Progress = coverage.Progress{Error: err.Error()}
	status.RecommendedRange = nil
	status.Direction = recommend.DirectionNone
	return status, nil
}

// ScanForCandidates finds transfer candidates in r across all accounts.
// Pages are streamed into the matcher as they arrive.
func (s *Service) ScanForCandidates(ctx context.Context, r interval.DateRange) ([]matcher.TransferCandidate, error) {
	if err := r.ValidateNamed("scan range"); err != nil {
		return nil, err
	}

	txs, fetchErr := s.transactions(ctx, r)
	candidates := slices.Collect(s.matcher.FindCandidates(txs, r))
	if err := fetchErr(); err != nil {
		return nil, err
	}

	s.logger.Debug("scanned range for transfers",
		"range", r.String(),
		"candidates", len(candidates),
	)
	return candidates, nil
}

// transactions returns a single-use sequence over every page in r. The
// returned func reports the error that ended the sequence early, if any.
func (s *Service) transactions(ctx context.Context, r interval.DateRange) (iter.Seq[matcher.Transaction], func() error) {
	var fetchErr error

	seq := func(yield func(matcher.Transaction) bool) {
		token := ""
		for {
			var page []matcher.Transaction
			var next string
			err := s.call(ctx, opGetTransactions, func() error {
				p, err := s.store.GetTransactions(ctx, nil, r, token, s.config.PageSize)
				if err != nil {
					return err
				}
				page, next = p.Transactions, p.NextPageToken
				return nil
			})
			if err != nil {
				fetchErr = err
				return
			}

			for _, tx := range page {
				if !yield(tx) {
					return
				}
			}
			if next == "" {
				return
			}
			token = next
		}
	}

	return seq, func() error { return fetchErr }
}

// CommitScannedRange extends the scope's checked range with r and persists
// it, returning the new checked range.
//
// The stored range is re-read under the scope lock, so the union is always
// taken against the latest commit. A range separated from the checked range
// by days that contain data is rejected with ErrNonContiguous. When the save
// fails, the computed range is still returned with the error so the caller
// can retry.
func (s *Service) CommitScannedRange(ctx context.Context, scope string, r interval.DateRange) (interval.DateRange, error) {
	if err := r.ValidateNamed("scanned range"); err != nil {
		return interval.DateRange{}, err
	}

	unlock := s.lockScope(scope)
	defer unlock()

	state, err := s.loadScanState(ctx, scope)
	if err != nil {
		return interval.DateRange{}, err
	}

	merged := r
	if state.CheckedRange != nil {
		merged, err = s.merge(ctx, *state.CheckedRange, r)
		if err != nil {
			return interval.DateRange{}, err
		}
	}

	if err := s.call(ctx, opSaveCheckedRange, func() error {
		return s.store.SaveCheckedRange(ctx, scope, merged)
	}); err != nil {
		s.logger.Error("failed to persist checked range",
			"scope", scope,
			"range", merged.String(),
			"error", err,
		)
		return merged, err
	}

	s.metrics.RangeCommitted()
	s.logger.Info("checked range committed",
		"scope", scope,
		"scanned", r.String(),
		"checked", merged.String(),
	)
	return merged, nil
}

// merge unions the checked range with a scanned one. A gap between them is
// only bridged when no account has data inside it.
func (s *Service) merge(ctx context.Context, checked, scanned interval.DateRange) (interval.DateRange, error) {
	if u, ok := interval.Union(checked, scanned); ok {
		return u, nil
	}

	gap, _ := interval.Gap(checked, scanned)
	account, err := s.loadAccountRange(ctx)
	if err != nil {
		return interval.DateRange{}, err
	}
	if account != nil {
		if inside, ok := interval.Intersect(gap, *account); ok && inside.Days() > 0 {
			return interval.DateRange{}, fmt.Errorf("%w: %s would leave %s unscanned",
				ErrNonContiguous, scanned.String(), gap.String())
		}
	}
	return interval.Hull(checked, scanned), nil
}

// loadAccountRange returns the hull of every account's range, or nil when no
// account has transactions. Accounts are looked up concurrently. The result
// does not depend on scope: a scope only keys the stored checked range and
// preferences.
func (s *Service) loadAccountRange(ctx context.Context) (*interval.DateRange, error) {
	var ids []string
	if err := s.call(ctx, opListAccounts, func() error {
		var err error
		ids, err = s.store.ListAccountIDs(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	ranges := make([]*interval.DateRange, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountRangeConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			return s.call(gctx, opGetAccountRange, func() error {
				r, err := s.store.GetAccountRange(gctx, id)
				ranges[i] = r
				return err
			})
		})
	}
	// Wait returns the first failure; siblings it cancelled are dropped.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hull *interval.DateRange
	for _, r := range ranges {
		if r == nil {
			continue
		}
		if err := r.ValidateNamed("account range"); err != nil {
			return nil, err
		}
		if hull == nil {
			hull = interval.Ptr(*r)
			continue
		}
		*hull = interval.Hull(*hull, *r)
	}

	s.logger.Debug("loaded account range",
		"accounts", len(ids),
		"has_data", hull != nil,
	)
	return hull, nil
}

func (s *Service) loadScanState(ctx context.Context, scope string) (*scanState, error) {
	var state *scanState
	err := s.call(ctx, opGetPreferences, func() error {
		st, err := s.store.GetTransferPreferences(ctx, scope)
		if err != nil {
			return err
		}
		state = &scanState{Preferences: st.Preferences}
		if st.CheckedRange != nil {
			state.CheckedRange = interval.Ptr(*st.CheckedRange)
		}
		return nil
	})
	return state, err
}

type scanState struct {
	CheckedRange *interval.DateRange
	Preferences  recommend.Preferences
}

// lockScope acquires the commit lock for a scope and returns its release.
func (s *Service) lockScope(scope string) func() {
	s.locksMutex.Lock()
	lock, exists := s.scopeLocks[scope]
	if !exists {
		lock = &sync.Mutex{}
		s.scopeLocks[scope] = lock
	}
	s.locksMutex.Unlock()

	lock.Lock()
	return lock.Unlock
}
