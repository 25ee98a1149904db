package storage

import (
	"context"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	AccountRepository
	TransactionRepository
	PreferenceRepository
	TransferLinkRepository
	ScanCycleRepository
	Close() error
}

// AccountRepository handles accounts and their observed data range
type AccountRepository interface {
	// UpsertAccount creates or updates an account
	UpsertAccount(ctx context.Context, account *Account) error

	// ListAccountIDs returns every account ID, sorted
	ListAccountIDs(ctx context.Context) ([]string, error)

	// GetAccountRange returns the earliest and latest transaction dates for an
	// account, or nil when it has no transactions
	GetAccountRange(ctx context.Context, accountID string) (*interval.DateRange, error)
}

// TransactionRepository provides read access to transactions for scanning
type TransactionRepository interface {
	// SaveTransactions inserts or replaces transactions
	SaveTransactions(ctx context.Context, txs []matcher.Transaction) error

	// GetTransactions returns one page of transactions for the given accounts
	// inside the range, ordered by date then ID. An empty accountIDs means all
	// accounts. Pass the previous page's NextPageToken to continue.
	GetTransactions(ctx context.Context, accountIDs []string, r interval.DateRange, pageToken string, pageSize int) (*TransactionPage, error)
}

// PreferenceRepository persists transfer scan state per scope
type PreferenceRepository interface {
	// GetTransferPreferences returns the scan state for a scope. A scope with
	// no stored state returns a zero state, not an error.
	GetTransferPreferences(ctx context.Context, scope string) (*ScanState, error)

	// SaveCheckedRange replaces the checked range for a scope
	SaveCheckedRange(ctx context.Context, scope string, r interval.DateRange) error

	// SavePreferences replaces the user preferences for a scope, keeping its
	// checked range
	SavePreferences(ctx context.Context, scope string, prefs recommend.Preferences) error
}

// TransferLinkRepository records confirmed transfers
type TransferLinkRepository interface {
	// SaveTransferLinks stores links; a pair that is already linked is skipped
	SaveTransferLinks(ctx context.Context, links []TransferLink) error

	// ListTransferLinks returns the most recently confirmed links
	ListTransferLinks(ctx context.Context, limit int) ([]TransferLink, error)
}

// ScanCycleRepository handles scan cycle tracking
type ScanCycleRepository interface {
	// StartScanCycle records the start of a scan cycle
	StartScanCycle(ctx context.Context, cycle *ScanCycle) error

	// CompleteScanCycle records how a scan cycle ended
	CompleteScanCycle(ctx context.Context, id string, status string, accepted, rejected int) error

	// ListScanCycles returns recent scan cycles, newest first
	ListScanCycles(ctx context.Context, limit int) ([]ScanCycle, error)

	// GetScanCycle retrieves a scan cycle by ID, or nil if unknown
	GetScanCycle(ctx context.Context, id string) (*ScanCycle, error)
}
