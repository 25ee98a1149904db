package review

import (
	"context"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

// AccountSource reports which accounts exist and the dates they span.
type AccountSource interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
	GetAccountRange(ctx context.Context, accountID string) (*interval.DateRange, error)
}

// PreferenceStore loads and saves scan state per scope.
type PreferenceStore interface {
	GetTransferPreferences(ctx context.Context, scope string) (*storage.ScanState, error)
	SaveCheckedRange(ctx context.Context, scope string, r interval.DateRange) error
}

// TransactionSource pages through transactions in a date range.
type TransactionSource interface {
	GetTransactions(ctx context.Context, accountIDs []string, r interval.DateRange, pageToken string, pageSize int) (*storage.TransactionPage, error)
}

// LinkWriter receives accepted candidates.
type LinkWriter interface {
	SaveTransferLinks(ctx context.Context, links []storage.TransferLink) error
}

// CycleRecorder keeps the scan cycle history.
type CycleRecorder interface {
	StartScanCycle(ctx context.Context, cycle *storage.ScanCycle) error
	CompleteScanCycle(ctx context.Context, id string, status string, accepted, rejected int) error
}

// Store is everything the review service reads and writes.
// storage.Repository satisfies it.
type Store interface {
	AccountSource
	PreferenceStore
	TransactionSource
	LinkWriter
	CycleRecorder
}

var _ Store = (storage.Repository)(nil)
