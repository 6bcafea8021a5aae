package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/waypost/internal/ir"
)

// ErrRecordNotFound is returned by Update when no pending record has the given id.
var ErrRecordNotFound = errors.New("mutation record not found")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save writes a record into the pending namespace.
// Uses ON CONFLICT(id) DO UPDATE so saving the same id twice keeps one row.
func (s *Store) Save(ctx context.Context, rec ir.MutationRecord) error {
	if err := upsertRecord(ctx, s.db, pendingTable, rec); err != nil {
		return fmt.Errorf("save mutation: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields (state, retry count, last error) of a pending record.
// Returns ErrRecordNotFound if the record is not in the pending namespace.
func (s *Store) Update(ctx context.Context, rec ir.MutationRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_mutations
		SET state = ?, retry_count = ?, last_error = ?
		WHERE id = ?
	`,
		string(rec.State),
		rec.RetryCount,
		rec.LastError,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update mutation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mutation: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update mutation %s: %w", rec.ID, ErrRecordNotFound)
	}
	return nil
}

// Remove deletes a record from the pending namespace.
// Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove mutation: %w", err)
	}
	return nil
}

// MoveToFailed copies a record into the failed namespace and deletes it from pending.
// Both statements run in one transaction.
func (s *Store) MoveToFailed(ctx context.Context, rec ir.MutationRecord) error {
	if err := s.move(ctx, rec, pendingTable, failedTable); err != nil {
		return fmt.Errorf("move to failed: %w", err)
	}
	return nil
}

// MoveFromFailed copies a record back into the pending namespace and deletes it from failed.
func (s *Store) MoveFromFailed(ctx context.Context, rec ir.MutationRecord) error {
	if err := s.move(ctx, rec, failedTable, pendingTable); err != nil {
		return fmt.Errorf("move from failed: %w", err)
	}
	return nil
}

// RemoveFailed deletes a record from the failed namespace.
func (s *Store) RemoveFailed(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failed_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove failed mutation: %w", err)
	}
	return nil
}

// ClearFailedQueue deletes every failed record.
func (s *Store) ClearFailedQueue(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failed_mutations`); err != nil {
		return fmt.Errorf("clear failed queue: %w", err)
	}
	return nil
}

// ClearPendingQueue deletes every pending record.
func (s *Store) ClearPendingQueue(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_mutations`); err != nil {
		return fmt.Errorf("clear pending queue: %w", err)
	}
	return nil
}

func (s *Store) move(ctx context.Context, rec ir.MutationRecord, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := upsertRecord(ctx, tx, to, rec); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", from), rec.ID); err != nil {
		return fmt.Errorf("delete from %s: %w", from, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertRecord inserts or replaces a record in the given table.
func upsertRecord(ctx context.Context, ex execer, table string, rec ir.MutationRecord) error {
	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, type, payload, state, created_at, seq, retry_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			payload = excluded.payload,
			state = excluded.state,
			created_at = excluded.created_at,
			seq = excluded.seq,
			retry_count = excluded.retry_count,
			last_error = excluded.last_error
	`, table)

	_, err := ex.ExecContext(ctx, query,
		rec.ID,
		rec.Type,
		payload,
		string(rec.State),
		marshalTime(rec.CreatedAt),
		rec.Seq,
		rec.RetryCount,
		rec.LastError,
	)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}
