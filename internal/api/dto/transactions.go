package dto

// TransactionResponse represents one leg of a transfer candidate.
// Amounts are decimal strings so no precision is lost.
type TransactionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
}

// CandidateResponse is a proposed transfer awaiting review. Key is what
// clients send back in a DecisionsRequest.
type CandidateResponse struct {
	Key         string              `json:"key"`
	Outgoing    TransactionResponse `json:"outgoing"`
	Incoming    TransactionResponse `json:"incoming"`
	AmountDelta string              `json:"amount_delta"`
	DayDelta    int                 `json:"day_delta"`
	Confidence  float64             `json:"confidence"`
}

// ScanResponse is returned by an ad-hoc scan of a range.
type ScanResponse struct {
	Range      RangeResponse       `json:"range"`
	Candidates []CandidateResponse `json:"candidates"`
	Count      int                 `json:"count"`
}

// CycleResponse represents an open or finished review cycle.
// A cycle without an ID carries only a summary: the scope is complete, has
// no data, or summary.progress.error explains why nothing was scanned.
type CycleResponse struct {
	ID             string              `json:"id,omitempty"`
	Status         string              `json:"status,omitempty"`
	Complete       bool                `json:"complete"`
	StartedAt      string              `json:"started_at,omitempty"`
	ExpiresAt      string              `json:"expires_at,omitempty"`
	CommittedRange *RangeResponse      `json:"committed_range,omitempty"`
	Summary        StatusResponse      `json:"summary"`
	Candidates     []CandidateResponse `json:"candidates"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
