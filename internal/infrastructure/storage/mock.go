package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu sync.Mutex

	accounts     map[string]*Account
	transactions map[string]matcher.Transaction
	states       map[string]*ScanState
	links        []TransferLink
	cycles       map[string]*ScanCycle

	// Hooks for test assertions
	GetTransactionsCalls  int
	SaveCheckedRangeCalls int
	LastCheckedRange      *interval.DateRange
	SavedLinks            []TransferLink

	// Error injection for testing error paths
	ListAccountIDsErr    error
	GetAccountRangeErr   error
	GetTransactionsErr   error
	GetPreferencesErr    error
	SaveCheckedRangeErr  error
	SavePreferencesErr   error
	SaveTransferLinksErr error
	StartScanCycleErr    error

	// FailGetTransactionsAfter makes GetTransactions fail once this many
	// pages have been served. Zero disables it.
	FailGetTransactionsAfter int
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:     make(map[string]*Account),
		transactions: make(map[string]matcher.Transaction),
		states:       make(map[string]*ScanState),
		cycles:       make(map[string]*ScanCycle),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// UpsertAccount stores an account
func (m *MockRepository) UpsertAccount(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

// ListAccountIDs returns account IDs, including those only seen on transactions
func (m *MockRepository) ListAccountIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListAccountIDsErr != nil {
		return nil, m.ListAccountIDsErr
	}

	seen := make(map[string]bool)
	for id := range m.accounts {
		seen[id] = true
	}
	for _, tx := range m.transactions {
		seen[tx.AccountID] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// GetAccountRange returns the min/max transaction date for an account
func (m *MockRepository) GetAccountRange(_ context.Context, accountID string) (*interval.DateRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetAccountRangeErr != nil {
		return nil, m.GetAccountRangeErr
	}

	var r *interval.DateRange
	for _, tx := range m.transactions {
		if tx.AccountID != accountID {
			continue
		}
		if r == nil {
			r = &interval.DateRange{Start: tx.Date, End: tx.Date}
			continue
		}
		r.Start = interval.Min(r.Start, tx.Date)
		r.End = interval.Max(r.End, tx.Date)
	}
	return r, nil
}

// SaveTransactions stores transactions by ID
func (m *MockRepository) SaveTransactions(_ context.Context, txs []matcher.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		m.transactions[tx.ID] = tx
	}
	return nil
}

// GetTransactions pages through stored transactions ordered by date then ID
func (m *MockRepository) GetTransactions(ctx context.Context, accountIDs []string, r interval.DateRange, pageToken string, pageSize int) (*TransactionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetTransactionsCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetTransactionsErr != nil {
		return nil, m.GetTransactionsErr
	}
	if m.FailGetTransactionsAfter > 0 && m.GetTransactionsCalls > m.FailGetTransactionsAfter {
		return nil, fmt.Errorf("mock: page %d unavailable", m.GetTransactionsCalls)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	var matched []matcher.Transaction
	for _, tx := range m.transactions {
		if len(accountIDs) > 0 && !slices.Contains(accountIDs, tx.AccountID) {
			continue
		}
		if r.Contains(tx.Date) {
			matched = append(matched, tx)
		}
	}
	sort.Slice(matched, func(a, b int) bool {
		if !matched[a].Date.Equal(matched[b].Date) {
			return matched[a].Date.Before(matched[b].Date)
		}
		return matched[a].ID < matched[b].ID
	})

	page := &TransactionPage{}
	if offset >= len(matched) {
		return page, nil
	}
	end := min(offset+pageSize, len(matched))
	page.Transactions = matched[offset:end]
	if end < len(matched) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// GetTransferPreferences returns the scan state for a scope
func (m *MockRepository) GetTransferPreferences(_ context.Context, scope string) (*ScanState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetPreferencesErr != nil {
		return nil, m.GetPreferencesErr
	}

	state, ok := m.states[scope]
	if !ok {
		return &ScanState{Scope: scope}, nil
	}

	copied := *state
	if state.CheckedRange != nil {
		copied.CheckedRange = interval.Ptr(*state.CheckedRange)
	}
	copied.Preferences.LastUsedChunkSizes = slices.Clone(state.Preferences.LastUsedChunkSizes)
	return &copied, nil
}

// SaveCheckedRange replaces the checked range for a scope
func (m *MockRepository) SaveCheckedRange(_ context.Context, scope string, r interval.DateRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCheckedRangeCalls++
	if m.SaveCheckedRangeErr != nil {
		return m.SaveCheckedRangeErr
	}
	if err := r.ValidateNamed("checked range"); err != nil {
		return err
	}

	state := m.stateLocked(scope)
	state.CheckedRange = interval.Ptr(r)
	state.UpdatedAt = time.Now()
	m.LastCheckedRange = interval.Ptr(r)
	return nil
}

// SavePreferences replaces the preferences for a scope
func (m *MockRepository) SavePreferences(_ context.Context, scope string, prefs recommend.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SavePreferencesErr != nil {
		return m.SavePreferencesErr
	}

	state := m.stateLocked(scope)
	prefs.LastUsedChunkSizes = slices.Clone(prefs.LastUsedChunkSizes)
	state.Preferences = prefs
	state.UpdatedAt = time.Now()
	return nil
}

func (m *MockRepository) stateLocked(scope string) *ScanState {
	state, ok := m.states[scope]
	if !ok {
		state = &ScanState{Scope: scope}
		m.states[scope] = state
	}
	return state
}

// SaveTransferLinks appends links, skipping pairs already linked
func (m *MockRepository) SaveTransferLinks(_ context.Context, links []TransferLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveTransferLinksErr != nil {
		return m.SaveTransferLinksErr
	}

	for _, link := range links {
		exists := slices.ContainsFunc(m.links, func(l TransferLink) bool {
			return l.OutgoingID == link.OutgoingID && l.IncomingID == link.IncomingID
		})
		if exists {
			continue
		}
		if link.ID == "" {
			link.ID = uuid.NewString()
		}
		if link.ConfirmedAt.IsZero() {
			link.ConfirmedAt = time.Now()
		}
		m.links = append(m.links, link)
		m.SavedLinks = append(m.SavedLinks, link)
	}
	return nil
}

// ListTransferLinks returns links, newest first
func (m *MockRepository) ListTransferLinks(_ context.Context, limit int) ([]TransferLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]TransferLink, 0, len(m.links))
	for i := len(m.links) - 1; i >= 0; i-- {
		result = append(result, m.links[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// StartScanCycle records a new cycle
func (m *MockRepository) StartScanCycle(_ context.Context, cycle *ScanCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartScanCycleErr != nil {
		return m.StartScanCycleErr
	}
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.StartedAt.IsZero() {
		cycle.StartedAt = time.Now()
	}
	if cycle.Status == "" {
		cycle.Status = CycleStatusOpen
	}

	copied := *cycle
	m.cycles[cycle.ID] = &copied
	return nil
}

// CompleteScanCycle marks a cycle as finished
func (m *MockRepository) CompleteScanCycle(_ context.Context, id string, status string, accepted, rejected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cycle, ok := m.cycles[id]
	if !ok {
		return fmt.Errorf("scan cycle %s not found", id)
	}
	now := time.Now()
	cycle.Status = status
	cycle.AcceptedCount = accepted
	cycle.RejectedCount = rejected
	cycle.CompletedAt = &now
	return nil
}

// ListScanCycles returns cycles, newest first
func (m *MockRepository) ListScanCycles(_ context.Context, limit int) ([]ScanCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ScanCycle, 0, len(m.cycles))
	for _, c := range m.cycles {
		result = append(result, *c)
	}
	sort.Slice(result, func(a, b int) bool {
		if !result[a].StartedAt.Equal(result[b].StartedAt) {
			return result[a].StartedAt.After(result[b].StartedAt)
		}
		return result[a].ID < result[b].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetScanCycle returns a cycle by ID, or nil
func (m *MockRepository) GetScanCycle(_ context.Context, id string) (*ScanCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cycle, ok := m.cycles[id]
	if !ok {
		return nil, nil
	}
	copied := *cycle
	return &copied, nil
}

// Links returns every stored link in insertion order
func (m *MockRepository) Links() []TransferLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.links)
}
