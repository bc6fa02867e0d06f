// Package store is the agent's durable local storage: the deferred-operation
// queue, autosaved form drafts, and a small recent-actions history.  It is
// backed by a single SQLite file so queued work survives crashes, app kills
// and device reboots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrDraftNotFound is returned by LoadDraft when no draft exists for a key.
var ErrDraftNotFound = errors.New("draft not found")

// recentActionCap bounds the recent-actions history; the oldest entry is
// evicted once the table is full.
const recentActionCap = 20

// QueueItem is one deferred mutation waiting to be replayed against the API.
type QueueItem struct {
	ID            int64
	OperationType string
	Endpoint      string
	Method        string
	Payload       json.RawMessage
	CreatedAt     time.Time
	RetryCount    int
}

// Draft is autosaved form state keyed by a caller-chosen composite key.
type Draft struct {
	Key     string
	Payload json.RawMessage
	SavedAt time.Time
}

// RecentAction is one history entry kept for UX recall.
type RecentAction struct {
	ID          int64
	AssetID     uint64
	AssetLabel  string
	ActionType  string
	Description string
	RecordedAt  time.Time
}

// Store wraps the SQLite handle.  A single store owns its file exclusively;
// there is no cross-process sharing.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS op_queue (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_type TEXT    NOT NULL,
    endpoint       TEXT    NOT NULL,
    method         TEXT    NOT NULL,
    payload        BLOB    NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    retry_count    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS drafts (
    key      TEXT PRIMARY KEY,
    payload  BLOB NOT NULL,
    saved_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS recent_actions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id    INTEGER NOT NULL,
    asset_label TEXT    NOT NULL,
    action_type TEXT    NOT NULL,
    description TEXT    NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);`

// Open creates or opens the store at path and ensures the schema exists.
// The pool is capped at one connection: the agent is a single writer, and a
// single connection sidesteps SQLITE_BUSY races entirely.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Enqueue appends a deferred operation with retry_count 0 and returns the
// stored item.  Growth is bounded only by disk; callers decide how much work
// is worth deferring.
func (s *Store) Enqueue(ctx context.Context, opType, endpoint, method string, payload json.RawMessage) (QueueItem, error) {
	if payload == nil {
		payload = json.RawMessage("null")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO op_queue (operation_type, endpoint, method, payload, created_at, retry_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		opType, endpoint, method, []byte(payload), now)
	if err != nil {
		return QueueItem{}, fmt.Errorf("enqueue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return QueueItem{}, fmt.Errorf("enqueue id: %w", err)
	}
	return QueueItem{
		ID:            id,
		OperationType: opType,
		Endpoint:      endpoint,
		Method:        method,
		Payload:       payload,
		CreatedAt:     now,
	}, nil
}

// ListQueue returns every queued operation in insertion order.
func (s *Store) ListQueue(ctx context.Context) ([]QueueItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation_type, endpoint, method, payload, created_at, retry_count
		 FROM op_queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var it QueueItem
		var payload []byte
		if err := rows.Scan(&it.ID, &it.OperationType, &it.Endpoint, &it.Method, &payload, &it.CreatedAt, &it.RetryCount); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.Payload = json.RawMessage(payload)
		items = append(items, it)
	}
	return items, rows.Err()
}

// RemoveFromQueue deletes a queued operation.  Removing an id that is not
// present is a no-op success.
func (s *Store) RemoveFromQueue(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM op_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove from queue: %w", err)
	}
	return nil
}

// IncrementRetry bumps the item's retry counter and returns the new value.
func (s *Store) IncrementRetry(ctx context.Context, id int64) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE op_queue SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT retry_count FROM op_queue WHERE id = ?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read retry count: %w", err)
	}
	return n, nil
}

// SaveDraft upserts the draft for key; at most one draft exists per key.
func (s *Store) SaveDraft(ctx context.Context, key string, payload json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (key, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		key, []byte(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the draft stored under key, or ErrDraftNotFound.
func (s *Store) LoadDraft(ctx context.Context, key string) (Draft, error) {
	var d Draft
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT key, payload, saved_at FROM drafts WHERE key = ?`, key).
		Scan(&d.Key, &payload, &d.SavedAt)
	if err == sql.ErrNoRows {
		return Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	d.Payload = json.RawMessage(payload)
	return d, nil
}

// DeleteDraft removes the draft for key.  Deleting an absent key succeeds.
func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// RecordAction appends a history entry, evicting the oldest rows so the
// table never holds more than the cap.
func (s *Store) RecordAction(ctx context.Context, assetID uint64, assetLabel, actionType, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recent_actions (asset_id, asset_label, action_type, description, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		assetID, assetLabel, actionType, description, time.Now().UTC()); err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recent_actions WHERE id NOT IN
		 (SELECT id FROM recent_actions ORDER BY id DESC LIMIT ?)`, recentActionCap); err != nil {
		return fmt.Errorf("trim actions: %w", err)
	}
	return tx.Commit()
}

// ListRecentActions returns up to limit entries, most recent first.
func (s *Store) ListRecentActions(ctx context.Context, limit int) ([]RecentAction, error) {
	if limit <= 0 || limit > recentActionCap {
		limit = recentActionCap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, asset_label, action_type, description, recorded_at
		 FROM recent_actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []RecentAction
	for rows.Next() {
		var a RecentAction
		if err := rows.Scan(&a.ID, &a.AssetID, &a.AssetLabel, &a.ActionType, &a.Description, &a.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
