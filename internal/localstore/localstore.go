// Package localstore is the per-device durable store backing the sync
// client: a cache of known transactions, the pending-change queue, and the
// last-sync cursor. It does no network I/O.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
	_ "modernc.org/sqlite"
)

const cursorKey = "last_sync"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		queued_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Store persists the device-local sync state in SQLite. Records are kept as
// JSON payloads keyed by transaction id; each write is a single-record
// transaction, so a failure never leaves a half-written record.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the store at path. ":memory:" gives a throwaway
// in-process store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// SQLite allows one writer; the sync client is single-cycle anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init local store schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertLocal inserts-or-replaces a transaction in the local cache by id.
// Pull merges call this for every returned record; known ids are
// overwritten idempotently, never duplicated.
func (s *Store) UpsertLocal(ctx context.Context, tx models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		tx.ID, string(payload), tx.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)

	logger.Log.Debugw("localstore upsert", "id", tx.ID, "error", err)
	return err
}

// SaveLocalChange records a local creation or edit: the cache row and the
// pending-queue entry are written in one database transaction.
func (s *Store) SaveLocalChange(ctx context.Context, tx models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	updatedAt := tx.UpdatedAt.UTC().Format(time.RFC3339Nano)

	dbTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO transactions (id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		tx.ID, string(payload), updatedAt,
	); err != nil {
		return err
	}

	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO pending (id, payload, queued_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, queued_at = excluded.queued_at`,
		tx.ID, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	return dbTx.Commit()
}

// ListPending returns all unconfirmed local transactions, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.Transaction, error) {
	var payloads []string
	err := s.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM pending ORDER BY queued_at ASC`)
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(payloads))
	for _, p := range payloads {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(p), &tx); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// ClearPending removes pending entries once the server confirmed the batch.
func (s *Store) ClearPending(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending`)
	return err
}

// ListCached returns the full local transaction cache, ascending by
// updated_at.
func (s *Store) ListCached(ctx context.Context) ([]models.Transaction, error) {
	var payloads []string
	err := s.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM transactions ORDER BY updated_at ASC`)
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(payloads))
	for _, p := range payloads {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(p), &tx); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetCursor returns the last-sync boundary, or nil before the first
// successful sync.
func (s *Store) GetCursor(ctx context.Context) (*time.Time, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM sync_state WHERE key = ?`, cursorKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cursor, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("corrupt cursor %q: %w", value, err)
	}
	return &cursor, nil
}

// SetCursor persists a new last-sync boundary. The cursor only ever moves
// forward; an older value is ignored.
func (s *Store) SetCursor(ctx context.Context, ts time.Time) error {
	current, err := s.GetCursor(ctx)
	if err != nil {
		return err
	}
	if current != nil && ts.Before(*current) {
		logger.Log.Warnw("ignoring cursor regression", "current", current, "proposed", ts)
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		cursorKey, ts.UTC().Format(time.RFC3339Nano),
	)
	return err
}
