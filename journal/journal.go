// Package journal persists committed transactions to SQLite and queues
// them in an outbox for reliable handoff to the external modification
// agent: lease with a visibility timeout, acknowledge on success, requeue
// on expiry, dead after too many attempts.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domedit/dbopen"
	"github.com/hazyhaar/domedit/txn"
)

// ErrNotFound reports a missing transaction row.
var ErrNotFound = errors.New("journal: not found")

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	target_json TEXT NOT NULL,
	before_json TEXT NOT NULL,
	after_json  TEXT NOT NULL,
	merged      INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	txn_id           TEXT NOT NULL REFERENCES transactions(id),
	state            TEXT NOT NULL DEFAULT 'queued',
	attempts         INTEGER NOT NULL DEFAULT 0,
	lease_expires_at INTEGER,
	updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbox_state ON outbox(state, id);
`

// Outbox states.
const (
	StateQueued = "queued"
	StateLeased = "leased"
	StateDone   = "done"
	StateDead   = "dead"
)

// DefaultMaxAttempts before an outbox entry goes dead.
const DefaultMaxAttempts = 5

// Config for a Store.
type Config struct {
	// MaxAttempts before a delivery is marked dead. Default 5.
	MaxAttempts int
	// Now is the clock, injectable for lease-expiry tests.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is the transaction journal.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open opens (or creates) the journal at path.
func Open(path string, cfg Config) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return NewStore(db, cfg)
}

// NewStore wraps an already-open database, applying the schema.
func NewStore(db *sql.DB, cfg Config) (*Store, error) {
	cfg.defaults()
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Store{db: db, cfg: cfg, logger: cfg.Logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append upserts a transaction and enqueues it for delivery, both inside
// one SQL transaction. A merged commit updates the existing row in place
// without enqueueing a duplicate while the original is still queued.
func (s *Store) Append(ctx context.Context, t *txn.Transaction) error {
	target, err := json.Marshal(t.Target)
	if err != nil {
		return fmt.Errorf("journal: marshal target: %w", err)
	}
	before, err := json.Marshal(t.Before)
	if err != nil {
		return fmt.Errorf("journal: marshal before: %w", err)
	}
	after, err := json.Marshal(t.After)
	if err != nil {
		return fmt.Errorf("journal: marshal after: %w", err)
	}
	now := s.cfg.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO transactions (id, kind, target_json, before_json, after_json, merged, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				after_json = excluded.after_json,
				merged     = excluded.merged,
				created_at = excluded.created_at`,
			t.ID, string(t.Kind), string(target), string(before), string(after),
			boolInt(t.Merged), t.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("journal: upsert transaction: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO outbox (txn_id, state, updated_at)
			SELECT ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM outbox WHERE txn_id = ? AND state IN (?, ?)
			)`,
			t.ID, StateQueued, now, t.ID, StateQueued, StateLeased)
		if err != nil {
			return fmt.Errorf("journal: enqueue: %w", err)
		}
		return nil
	})
}

// Get returns one transaction by ID.
func (s *Store) Get(ctx context.Context, id string) (*txn.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, target_json, before_json, after_json, merged, created_at
		FROM transactions WHERE id = ?`, id)
	t, err := scanTxn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: get %s: %w", id, ErrNotFound)
	}
	return t, err
}

// List returns up to limit transactions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*txn.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, target_json, before_json, after_json, merged, created_at
		FROM transactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()
	var out []*txn.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Latest returns the newest transaction, or ErrNotFound on an empty journal.
func (s *Store) Latest(ctx context.Context) (*txn.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, target_json, before_json, after_json, merged, created_at
		FROM transactions ORDER BY created_at DESC, id DESC LIMIT 1`)
	t, err := scanTxn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: latest: %w", ErrNotFound)
	}
	return t, err
}

type scanner interface{ Scan(...any) error }

func scanTxn(row scanner) (*txn.Transaction, error) {
	var (
		t         txn.Transaction
		kind      string
		target    string
		before    string
		after     string
		merged    int
		createdAt int64
	)
	if err := row.Scan(&t.ID, &kind, &target, &before, &after, &merged, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	t.Kind = txn.Kind(kind)
	if err := json.Unmarshal([]byte(target), &t.Target); err != nil {
		return nil, fmt.Errorf("journal: unmarshal target: %w", err)
	}
	if err := json.Unmarshal([]byte(before), &t.Before); err != nil {
		return nil, fmt.Errorf("journal: unmarshal before: %w", err)
	}
	if err := json.Unmarshal([]byte(after), &t.After); err != nil {
		return nil, fmt.Errorf("journal: unmarshal after: %w", err)
	}
	t.Merged = merged != 0
	t.CreatedAt = time.UnixMilli(createdAt)
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
