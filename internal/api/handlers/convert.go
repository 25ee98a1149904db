package handlers

import (
	"time"

	"github.com/eshaffer321/transferscan/internal/api/dto"
	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/infrastructure/storage"
)

func toRangeResponse(r interval.DateRange) dto.RangeResponse {
	return dto.RangeResponse{
		Start: r.Start.UTC().Format(interval.InstantLayout),
		End:   r.End.UTC().Format(interval.InstantLayout),
		Days:  r.Days(),
	}
}

func toRangeResponsePtr(r *interval.DateRange) *dto.RangeResponse {
	if r == nil {
		return nil
	}
	resp := toRangeResponse(*r)
	return &resp
}

func toStatusResponse(s review.Status) dto.StatusResponse {
	return dto.StatusResponse{
		Scope:        s.Scope,
		AccountRange: toRangeResponsePtr(s.AccountRange),
		CheckedRange: toRangeResponsePtr(s.CheckedRange),
		Progress: dto.ProgressResponse{
			HasData:            s.Progress.HasData,
			TotalDays:          s.Progress.TotalDays,
			CheckedDays:        s.Progress.CheckedDays,
			RemainingDays:      s.Progress.RemainingDays(),
			ProgressPercentage: s.Progress.ProgressPercentage,
			IsComplete:         s.Progress.IsComplete,
			Error:              s.Progress.Error,
			CheckedOutOfBounds: s.Progress.CheckedOutOfBounds,
		},
		RecommendedRange: toRangeResponsePtr(s.RecommendedRange),
		Direction:        string(s.Direction),
		ChunkDays:        s.ChunkDays,
	}
}

func toTransactionResponse(t matcher.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Date:        t.Date.UTC().Format(interval.InstantLayout),
		Amount:      t.Amount.String(),
		Currency:    t.Currency,
		Description: t.Description,
	}
}

func toCandidateResponses(candidates []matcher.TransferCandidate) []dto.CandidateResponse {
	out := make([]dto.CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, dto.CandidateResponse{
			Key:         c.Key(),
			Outgoing:    toTransactionResponse(c.Outgoing),
			Incoming:    toTransactionResponse(c.Incoming),
			AmountDelta: c.AmountDelta.String(),
			DayDelta:    c.DayDelta,
			Confidence:  c.Confidence,
		})
	}
	return out
}

func toCycleResponse(c *review.Cycle) dto.CycleResponse {
	resp := dto.CycleResponse{
		ID:             c.ID,
		Status:         c.Status,
		Complete:       c.Complete,
		CommittedRange: toRangeResponsePtr(c.CommittedRange),
		Summary:        toStatusResponse(c.Summary),
		Candidates:     toCandidateResponses(c.Candidates),
	}
	if !c.StartedAt.IsZero() {
		resp.StartedAt = c.StartedAt.UTC().Format(time.RFC3339)
	}
	if !c.ExpiresAt.IsZero() {
		resp.ExpiresAt = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toScanCycleResponse converts a storage ScanCycle to an API response.
func toScanCycleResponse(c storage.ScanCycle) dto.ScanCycleResponse {
	resp := dto.ScanCycleResponse{
		ID:             c.ID,
		Scope:          c.Scope,
		RangeStart:     c.RangeStart.UTC().Format(interval.InstantLayout),
		RangeEnd:       c.RangeEnd.UTC().Format(interval.InstantLayout),
		Direction:      c.Direction,
		ChunkDays:      c.ChunkDays,
		CandidateCount: c.CandidateCount,
		AcceptedCount:  c.AcceptedCount,
		RejectedCount:  c.RejectedCount,
		Status:         c.Status,
		StartedAt:      c.StartedAt.UTC().Format(time.RFC3339),
	}
	if c.CompletedAt != nil {
		resp.CompletedAt = c.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
