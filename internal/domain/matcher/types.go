package matcher

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds matcher configuration
type Config struct {
	AmountTolerance   decimal.Decimal // Absolute, same currency. Default: 0.01 (1 cent)
	RelativeTolerance decimal.Decimal // Fraction of the outgoing amount. Default: 0.005 (0.5%)
	DayTolerance      int             // Days tolerance (default: 3)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance:   decimal.NewFromFloat(0.01),
		RelativeTolerance: decimal.NewFromFloat(0.005),
		DayTolerance:      3,
	}
}

// Direction is an explicit debit/credit flag for sources that report
// unsigned amounts.
type Direction string

const (
	DirectionUnsigned Direction = ""
	DirectionDebit    Direction = "debit"
	DirectionCredit   Direction = "credit"
)

// Transaction is a read-only transaction record from the data store.
// Negative amounts are outgoing, positive amounts are incoming.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Direction   Direction       `json:"direction,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Normalized returns the transaction with a signed amount and no direction flag.
func (t Transaction) Normalized() Transaction {
	switch t.Direction {
	case DirectionDebit:
		t.Amount = t.Amount.Abs().Neg()
	case DirectionCredit:
		t.Amount = t.Amount.Abs()
	}
	t.Direction = DirectionUnsigned
	return t
}

// TransferCandidate is a proposed outgoing/incoming pair awaiting review.
type TransferCandidate struct {
	Outgoing    Transaction     `json:"outgoing"`
	Incoming    Transaction     `json:"incoming"`
	AmountDelta decimal.Decimal `json:"amount_delta"`
	DayDelta    int             `json:"day_delta"`
	Confidence  float64         `json:"confidence"` // 0-1 score
}

// Key identifies a candidate by its two legs.
func (c TransferCandidate) Key() string {
	return c.Outgoing.ID + ":" + c.Incoming.ID
}
