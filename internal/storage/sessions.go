package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/recallkit/internal/session"
)

var (
	_ session.CardStore     = (*DB)(nil)
	_ session.SnapshotStore = (*DB)(nil)
)

// SaveSnapshot stores or replaces a session snapshot.
func (db *DB) SaveSnapshot(ctx context.Context, snap *session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", snap.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
	`, snap.ID, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil
}

// LoadSnapshot returns the stored session, or (nil, nil) if there is none.
func (db *DB) LoadSnapshot(ctx context.Context, id string) (*session.Snapshot, error) {
	return db.loadSnapshot(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id)
}

// LatestSnapshot returns the most recently saved session, or (nil, nil).
func (db *DB) LatestSnapshot(ctx context.Context) (*session.Snapshot, error) {
	return db.loadSnapshot(ctx, `SELECT snapshot FROM sessions ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
}

func (db *DB) loadSnapshot(ctx context.Context, query string, args ...any) (*session.Snapshot, error) {
	var data string
	if err := db.conn.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &snap, nil
}
