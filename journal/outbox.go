package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/domedit/dbopen"
	"github.com/hazyhaar/domedit/txn"
)

// Entry is one leased delivery: the outbox row plus its transaction.
type Entry struct {
	OutboxID int64
	Attempts int
	Txn      *txn.Transaction
}

// LeaseNext claims the oldest queued entry for delivery, holding it for the
// visibility window. Returns (nil, nil) when nothing is queued.
func (s *Store) LeaseNext(ctx context.Context, visibility time.Duration) (*Entry, error) {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	now := s.cfg.Now()
	var e Entry
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT id, txn_id, attempts FROM outbox
			WHERE state = ? ORDER BY id LIMIT 1`, StateQueued)
		var txnID string
		if err := row.Scan(&e.OutboxID, &txnID, &e.Attempts); err != nil {
			return err
		}
		_, err := tx.Exec(`
			UPDATE outbox SET state = ?, lease_expires_at = ?, updated_at = ?
			WHERE id = ?`,
			StateLeased, now.Add(visibility).UnixMilli(), now.UnixMilli(), e.OutboxID)
		if err != nil {
			return err
		}
		t, err := scanTxn(tx.QueryRow(`
			SELECT id, kind, target_json, before_json, after_json, merged, created_at
			FROM transactions WHERE id = ?`, txnID))
		if err != nil {
			return err
		}
		e.Txn = t
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: lease: %w", err)
	}
	return &e, nil
}

// Ack marks a leased entry delivered.
func (s *Store) Ack(ctx context.Context, outboxID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET state = ?, lease_expires_at = NULL, updated_at = ?
		WHERE id = ? AND state = ?`,
		StateDone, s.cfg.Now().UnixMilli(), outboxID, StateLeased)
	if err != nil {
		return fmt.Errorf("journal: ack %d: %w", outboxID, err)
	}
	return requireRow(res, "ack", outboxID)
}

// Fail counts one failed delivery attempt: the entry goes back to queued,
// or dead once MaxAttempts is reached.
func (s *Store) Fail(ctx context.Context, outboxID int64) error {
	now := s.cfg.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var attempts int
		if err := tx.QueryRow(`SELECT attempts FROM outbox WHERE id = ?`, outboxID).Scan(&attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("journal: fail %d: %w", outboxID, ErrNotFound)
			}
			return err
		}
		attempts++
		state := StateQueued
		if attempts >= s.cfg.MaxAttempts {
			state = StateDead
		}
		_, err := tx.Exec(`
			UPDATE outbox SET state = ?, attempts = ?, lease_expires_at = NULL, updated_at = ?
			WHERE id = ?`, state, attempts, now, outboxID)
		return err
	})
}

// Requeue returns expired leases to the queue and reports how many moved.
func (s *Store) Requeue(ctx context.Context) (int, error) {
	now := s.cfg.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET state = ?, lease_expires_at = NULL, updated_at = ?
		WHERE state = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?`,
		StateQueued, now, StateLeased, now)
	if err != nil {
		return 0, fmt.Errorf("journal: requeue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: requeue: %w", err)
	}
	return int(n), nil
}

// PendingCount reports how many entries await delivery.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE state IN (?, ?)`,
		StateQueued, StateLeased).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal: pending count: %w", err)
	}
	return n, nil
}

// Prune deletes done outbox rows older than keep.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int, error) {
	cutoff := s.cfg.Now().Add(-keep).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE state = ? AND updated_at < ?`, StateDone, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return int(n), nil
}

func requireRow(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: %s %d: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("journal: %s %d: %w", op, id, ErrNotFound)
	}
	return nil
}
