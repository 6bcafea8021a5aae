package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/waypost/internal/ir"
)

// LoadPending returns every pending record in enqueue order.
// Ordered by seq ASC, id ASC so reloads are deterministic.
func (s *Store) LoadPending(ctx context.Context) ([]ir.MutationRecord, error) {
	recs, err := s.loadRecords(ctx, pendingTable)
	if err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	return recs, nil
}

// LoadFailed returns every failed record in enqueue order.
func (s *Store) LoadFailed(ctx context.Context) ([]ir.MutationRecord, error) {
	recs, err := s.loadRecords(ctx, failedTable)
	if err != nil {
		return nil, fmt.Errorf("load failed: %w", err)
	}
	return recs, nil
}

// GetPending returns a single pending record.
// Returns (record, false, nil) if the id is not pending.
func (s *Store) GetPending(ctx context.Context, id string) (ir.MutationRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, type, payload, state, created_at, seq, retry_count, last_error
		FROM %s WHERE id = ?
	`, pendingTable), id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.MutationRecord{}, false, nil
	}
	if err != nil {
		return ir.MutationRecord{}, false, fmt.Errorf("get pending: %w", err)
	}
	return rec, true, nil
}

// Counts returns the number of pending and failed records.
func (s *Store) Counts(ctx context.Context) (pending, failed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pending_mutations),
			(SELECT COUNT(*) FROM failed_mutations)
	`).Scan(&pending, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count mutations: %w", err)
	}
	return pending, failed, nil
}

func (s *Store) loadRecords(ctx context.Context, table string) ([]ir.MutationRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, type, payload, state, created_at, seq, retry_count, last_error
		FROM %s
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var recs []ir.MutationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return recs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ir.MutationRecord, error) {
	var (
		rec       ir.MutationRecord
		state     string
		createdAt string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Payload,
		&state,
		&createdAt,
		&rec.Seq,
		&rec.RetryCount,
		&rec.LastError,
	); err != nil {
		return ir.MutationRecord{}, err
	}

	rec.State = ir.RecordState(state)
	if !ir.ValidRecordStates[rec.State] {
		return ir.MutationRecord{}, fmt.Errorf("record %s: invalid state %q", rec.ID, state)
	}

	t, err := unmarshalTime(createdAt)
	if err != nil {
		return ir.MutationRecord{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
