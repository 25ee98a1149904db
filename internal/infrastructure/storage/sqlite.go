package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/transferscan/internal/domain/interval"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
)

// DefaultPageSize is used when GetTransactions is called with pageSize <= 0
const DefaultPageSize = 500

// ================================================================
// ACCOUNTS
// ================================================================

// UpsertAccount creates or updates an account
func (s *Storage) UpsertAccount(ctx context.Context, account *Account) error {
	if account.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO accounts (id, name, currency, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency = excluded.currency
	`, account.ID, account.Name, account.Currency, formatTime(account.CreatedAt))
	return err
}

// ListAccountIDs returns every account ID, sorted
func (s *Storage) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAccountRange returns the observed transaction date range for an account
func (s *Storage) GetAccountRange(ctx context.Context, accountID string) (*interval.DateRange, error) {
	var minDate, maxDate sql.NullString
	err := s.db.QueryRowContext(ctx, `
	SELECT MIN(date), MAX(date) FROM transactions WHERE account_id = ?
	`, accountID).Scan(&minDate, &maxDate)
	if err != nil {
		return nil, err
	}
	if !minDate.Valid || !maxDate.Valid {
		return nil, nil
	}

	start, err := parseTime(minDate.String)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(maxDate.String)
	if err != nil {
		return nil, err
	}
	return &interval.DateRange{Start: start, End: end}, nil
}

// ================================================================
// TRANSACTIONS
// ================================================================

// SaveTransactions inserts or replaces transactions in one transaction
func (s *Storage) SaveTransactions(ctx context.Context, txs []matcher.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO transactions
	(id, account_id, date, amount, currency, direction, description)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range txs {
		currency := t.Currency
		if currency == "" {
			currency = "USD"
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID,
			t.AccountID,
			formatTime(t.Date),
			t.Amount.String(),
			currency,
			string(t.Direction),
			t.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactions returns one page of transactions inside the range
func (s *Storage) GetTransactions(ctx context.Context, accountIDs []string, r interval.DateRange, pageToken string, pageSize int) (*TransactionPage, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	query := `
	SELECT id, account_id, date, amount, currency, direction, description
	FROM transactions
	WHERE date >= ? AND date <= ?`
	args := []interface{}{formatTime(r.Start), formatTime(r.End)}

	if len(accountIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(accountIDs)), ",")
		query += " AND account_id IN (" + placeholders + ")"
		for _, id := range accountIDs {
			args = append(args, id)
		}
	}

	// Fetch one extra row to know whether another page exists.
	query += " ORDER BY date, id LIMIT ? OFFSET ?"
	args = append(args, pageSize+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	page := &TransactionPage{}
	for rows.Next() {
		var t matcher.Transaction
		var date, direction string
		if err := rows.Scan(&t.ID, &t.AccountID, &date, &t.Amount, &t.Currency, &direction, &t.Description); err != nil {
			return nil, err
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		t.Direction = matcher.Direction(direction)
		page.Transactions = append(page.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Transactions) > pageSize {
		page.Transactions = page.Transactions[:pageSize]
		page.NextPageToken = strconv.Itoa(offset + pageSize)
	}

	return page, nil
}

// ================================================================
// TRANSFER PREFERENCES
// ================================================================

// GetTransferPreferences returns the stored scan state for a scope
func (s *Storage) GetTransferPreferences(ctx context.Context, scope string) (*ScanState, error) {
	var (
		lastUsedJSON string
		checkedStart sql.NullString
		checkedEnd   sql.NullString
		updatedAt    string
	)

	state := &ScanState{Scope: scope}
	err := s.db.QueryRowContext(ctx, `
	SELECT default_chunk_days, last_used_chunk_sizes, auto_expand, checked_start, checked_end, updated_at
	FROM transfer_preferences WHERE scope = ?
	`, scope).Scan(
		&state.Preferences.DefaultChunkDays,
		&lastUsedJSON,
		&state.Preferences.AutoExpand,
		&checkedStart,
		&checkedEnd,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, err
	}

	if lastUsedJSON != "" {
		if err := json.Unmarshal([]byte(lastUsedJSON), &state.Preferences.LastUsedChunkSizes); err != nil {
			return nil, fmt.Errorf("invalid last used chunk sizes for scope %s: %w", scope, err)
		}
	}

	start, err := parseNullTime(checkedStart)
	if err != nil {
		return nil, err
	}
	end, err := parseNullTime(checkedEnd)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil {
		state.CheckedRange = &interval.DateRange{Start: *start, End: *end}
	}

	if state.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return state, nil
}

// SaveCheckedRange replaces the checked range for a scope
func (s *Storage) SaveCheckedRange(ctx context.Context, scope string, r interval.DateRange) error {
	if err := r.ValidateNamed("checked range"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO transfer_preferences (scope, checked_start, checked_end, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(scope) DO UPDATE SET
		checked_start = excluded.checked_start,
		checked_end = excluded.checked_end,
		updated_at = excluded.updated_at
	`, scope, formatTime(r.Start), formatTime(r.End), formatTime(time.Now()))
	return err
}

// SavePreferences replaces the user preferences for a scope
func (s *Storage) SavePreferences(ctx context.Context, scope string, prefs recommend.Preferences) error {
	lastUsed := prefs.LastUsedChunkSizes
	if lastUsed == nil {
		lastUsed = []int{}
	}
	lastUsedJSON, err := json.Marshal(lastUsed)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO transfer_preferences (scope, default_chunk_days, last_used_chunk_sizes, auto_expand, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(scope) DO UPDATE SET
		default_chunk_days = excluded.default_chunk_days,
		last_used_chunk_sizes = excluded.last_used_chunk_sizes,
		auto_expand = excluded.auto_expand,
		updated_at = excluded.updated_at
	`, scope, prefs.DefaultChunkDays, string(lastUsedJSON), prefs.AutoExpand, formatTime(time.Now()))
	return err
}

// ================================================================
// TRANSFER LINKS
// ================================================================

// SaveTransferLinks stores confirmed transfers, skipping pairs already linked
func (s *Storage) SaveTransferLinks(ctx context.Context, links []TransferLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for i := range links {
		link := &links[i]
		if link.ID == "" {
			link.ID = uuid.NewString()
		}
		if link.ConfirmedAt.IsZero() {
			link.ConfirmedAt = time.Now()
		}

		_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO transfer_links
		(id, outgoing_id, incoming_id, amount, confidence, cycle_id, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, link.ID, link.OutgoingID, link.IncomingID, link.Amount.String(), link.Confidence, link.CycleID, formatTime(link.ConfirmedAt))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save transfer link %s: %w", link.ID, err)
		}
	}

	return tx.Commit()
}

// ListTransferLinks returns the most recently confirmed links
func (s *Storage) ListTransferLinks(ctx context.Context, limit int) ([]TransferLink, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, outgoing_id, incoming_id, amount, confidence, cycle_id, confirmed_at
	FROM transfer_links
	ORDER BY confirmed_at DESC, id
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var links []TransferLink
	for rows.Next() {
		var link TransferLink
		var confirmedAt string
		if err := rows.Scan(&link.ID, &link.OutgoingID, &link.IncomingID, &link.Amount, &link.Confidence, &link.CycleID, &confirmedAt); err != nil {
			return nil, err
		}
		if link.ConfirmedAt, err = parseTime(confirmedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ================================================================
// SCAN CYCLES
// ================================================================

// StartScanCycle records the start of a scan cycle
func (s *Storage) StartScanCycle(ctx context.Context, cycle *ScanCycle) error {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.StartedAt.IsZero() {
		cycle.StartedAt = time.Now()
	}
	if cycle.Status == "" {
		cycle.Status = CycleStatusOpen
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO scan_cycles
	(id, scope, range_start, range_end, direction, chunk_days, candidate_count, status, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cycle.ID, cycle.Scope, formatTime(cycle.RangeStart), formatTime(cycle.RangeEnd),
		cycle.Direction, cycle.ChunkDays, cycle.CandidateCount, cycle.Status, formatTime(cycle.StartedAt))
	return err
}

// CompleteScanCycle records how a scan cycle ended
func (s *Storage) CompleteScanCycle(ctx context.Context, id string, status string, accepted, rejected int) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE scan_cycles
	SET status = ?, accepted_count = ?, rejected_count = ?, completed_at = ?
	WHERE id = ?
	`, status, accepted, rejected, formatTime(time.Now()), id)
	return err
}

// ListScanCycles returns recent scan cycles, newest first
func (s *Storage) ListScanCycles(ctx context.Context, limit int) ([]ScanCycle, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, scope, range_start, range_end, direction, chunk_days, candidate_count,
	       accepted_count, rejected_count, status, started_at, completed_at
	FROM scan_cycles
	ORDER BY started_at DESC, id
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cycles []ScanCycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *cycle)
	}
	return cycles, rows.Err()
}

// GetScanCycle retrieves a scan cycle by ID
func (s *Storage) GetScanCycle(ctx context.Context, id string) (*ScanCycle, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, scope, range_start, range_end, direction, chunk_days, candidate_count,
	       accepted_count, rejected_count, status, started_at, completed_at
	FROM scan_cycles WHERE id = ?
	`, id)

	cycle, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cycle, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCycle(row rowScanner) (*ScanCycle, error) {
	var (
		cycle       ScanCycle
		rangeStart  string
		rangeEnd    string
		startedAt   string
		completedAt sql.NullString
	)

	err := row.Scan(
		&cycle.ID,
		&cycle.Scope,
		&rangeStart,
		&rangeEnd,
		&cycle.Direction,
		&cycle.ChunkDays,
		&cycle.CandidateCount,
		&cycle.AcceptedCount,
		&cycle.RejectedCount,
		&cycle.Status,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if cycle.RangeStart, err = parseTime(rangeStart); err != nil {
		return nil, err
	}
	if cycle.RangeEnd, err = parseTime(rangeEnd); err != nil {
		return nil, err
	}
	if cycle.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if cycle.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}

	return &cycle, nil
}
