package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
)

// Scan cycle statuses
const (
	CycleStatusOpen      = "open"
	CycleStatusCommitted = "committed"
	CycleStatusReviewed  = "reviewed"
	CycleStatusAbandoned = "abandoned"
	CycleStatusExpired   = "expired"
)

// Account is a user account that owns transactions
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionPage is one page of a paginated transaction fetch
type TransactionPage struct {
	Transactions  []matcher.Transaction `json:"transactions"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

// ScanState is the persisted transfer-scan state for one scope
type ScanState struct {
	Scope        string                `json:"scope"`
	CheckedRange *interval.DateRange   `json:"checked_range,omitempty"`
	Preferences  recommend.Preferences `json:"preferences"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TransferLink is a confirmed transfer between two transactions
type TransferLink struct {
	ID          string          `json:"id"`
	OutgoingID  string          `json:"outgoing_id"`
	IncomingID  string          `json:"incoming_id"`
	Amount      decimal.Decimal `json:"amount"`
	Confidence  float64         `json:"confidence"`
	CycleID     string          `json:"cycle_id,omitempty"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// ScanCycle represents a scan cycle record
type ScanCycle struct {
	ID             string     `json:"id"`
	Scope          string     `json:"scope"`
	RangeStart     time.Time  `json:"range_start"`
	RangeEnd       time.Time  `json:"range_end"`
	Direction      string     `json:"direction"`
	ChunkDays      int        `json:"chunk_days"`
	CandidateCount int        `json:"candidate_count"`
	AcceptedCount  int        `json:"accepted_count"`
	RejectedCount  int        `json:"rejected_count"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
