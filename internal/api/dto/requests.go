package dto

// RangeRequest is the body for endpoints that take a date range. Bounds are
// RFC3339 instants, as returned in RangeResponse, or 2006-01-02 dates. Both
// ends are inclusive and a bare end date covers its whole day.
type RangeRequest struct {
	Start string `json:"start" validate:"required,rangebound"`
	End   string `json:"end" validate:"required,rangebound"`
}

// PreferencesRequest replaces a scope's scan preferences.
type PreferencesRequest struct {
	DefaultChunkDays   int   `json:"default_chunk_days" validate:"min=0,max=3650"`
	LastUsedChunkSizes []int `json:"last_used_chunk_sizes" validate:"max=20,dive,min=1,max=3650"`
	AutoExpand         bool  `json:"auto_expand"`
}

// DecisionsRequest carries the user's verdicts on a cycle's candidates,
// by candidate key ("outgoingID:incomingID").
type DecisionsRequest struct {
	Accepted    []string `json:"accepted" validate:"dive,required"`
	Rejected    []string `json:"rejected" validate:"dive,required"`
	MarkChecked bool     `json:"mark_checked"`
}

// ScanCycleListParams represents query parameters for listing scan cycles.
type ScanCycleListParams struct {
	Limit int `json:"limit" validate:"min=1,max=500"`
}

// DefaultScanCycleListParams returns default values for scan cycle list params.
func DefaultScanCycleListParams() ScanCycleListParams {
	return ScanCycleListParams{
		Limit: 20,
	}
}
