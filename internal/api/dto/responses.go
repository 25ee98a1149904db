package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Accounts  int    `json:"accounts"`
	Error     string `json:"error,omitempty"`
}

// RangeResponse is an inclusive range with RFC3339 bounds. It can be sent
// back unchanged as a RangeRequest.
type RangeResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// ProgressResponse reports how much of a scope's history has been scanned.
type ProgressResponse struct {
	HasData            bool   `json:"has_data"`
	TotalDays          int    `json:"total_days"`
	CheckedDays        int    `json:"checked_days"`
	RemainingDays      int    `json:"remaining_days"`
	ProgressPercentage int    `json:"progress_percentage"`
	IsComplete         bool   `json:"is_complete"`
	Error              string `json:"error,omitempty"`
	CheckedOutOfBounds bool   `json:"checked_out_of_bounds,omitempty"`
}

// StatusResponse is returned by the scope status endpoint.
type StatusResponse struct {
	Scope            string           `json:"scope"`
	AccountRange     *RangeResponse   `json:"account_range,omitempty"`
	CheckedRange     *RangeResponse   `json:"checked_range,omitempty"`
	Progress         ProgressResponse `json:"progress"`
	RecommendedRange *RangeResponse   `json:"recommended_range,omitempty"`
	Direction        string           `json:"direction,omitempty"`
	ChunkDays        int              `json:"chunk_days"`
}

// CommitResponse is returned after a range has been marked checked.
type CommitResponse struct {
	Scope        string        `json:"scope"`
	CheckedRange RangeResponse `json:"checked_range"`
}

// PreferencesResponse represents a scope's scan preferences.
type PreferencesResponse struct {
	Scope              string         `json:"scope"`
	DefaultChunkDays   int            `json:"default_chunk_days"`
	LastUsedChunkSizes []int          `json:"last_used_chunk_sizes"`
	AutoExpand         bool           `json:"auto_expand"`
	CheckedRange       *RangeResponse `json:"checked_range,omitempty"`
	UpdatedAt          string         `json:"updated_at,omitempty"`
}

// ScanCycleResponse represents a recorded scan cycle in API responses.
type ScanCycleResponse struct {
	ID             string `json:"id"`
	Scope          string `json:"scope"`
	RangeStart     string `json:"range_start"`
	RangeEnd       string `json:"range_end"`
	Direction      string `json:"direction"`
	ChunkDays      int    `json:"chunk_days"`
	CandidateCount int    `json:"candidate_count"`
	AcceptedCount  int    `json:"accepted_count"`
	RejectedCount  int    `json:"rejected_count"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// ScanCycleListResponse is returned when listing scan cycles.
type ScanCycleListResponse struct {
	Runs  []ScanCycleResponse `json:"runs"`
	Count int                 `json:"count"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
