// Package history persists printer snapshots in a local SQLite database so
// the bridge can answer "what happened overnight" questions and survive
// restarts without losing the last known state of a printer.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	printer     TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	state       TEXT NOT NULL,
	online      INTEGER NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_printer_time
	ON snapshots (printer, recorded_at);
`

// ErrNotFound is returned when a printer has no recorded snapshots.
var ErrNotFound = errors.New("history: no snapshots recorded")

// Store is a snapshot archive backed by SQLite. It is safe for concurrent
// use; every poller appends through the same Store.
type Store struct {
	db *sqlx.DB
}

// row is the snapshots table shape.
type row struct {
	ID         string `db:"id"`
	Printer    string `db:"printer"`
	RecordedAt int64  `db:"recorded_at"`
	State      string `db:"state"`
	Online     bool   `db:"online"`
	Payload    string `db:"payload"`
}

// Open creates or opens the database at path and ensures the schema.
// Use ":memory:" for throwaway stores in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %q: %w", path, err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// from concurrent pollers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("History store opened.", "path", path)
	return &Store{db: db}, nil
}

// Append records one snapshot.
func (s *Store) Append(ctx context.Context, snap *sensors.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("history: encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, printer, recorded_at, state, online, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Printer.Name, snap.TakenAt.UnixNano(), snap.State, snap.Online, string(payload))
	if err != nil {
		return fmt.Errorf("history: insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for a printer.
func (s *Store) Latest(ctx context.Context, printer string) (*sensors.Snapshot, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `
		SELECT id, printer, recorded_at, state, online, payload
		FROM snapshots WHERE printer = ?
		ORDER BY recorded_at DESC LIMIT 1`, printer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, printer)
	}
	if err != nil {
		return nil, fmt.Errorf("history: query latest: %w", err)
	}
	return decode(&r)
}

// Range returns the snapshots for a printer between from and to,
// inclusive, oldest first.
func (s *Store) Range(ctx context.Context, printer string, from, to time.Time) ([]*sensors.Snapshot, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, printer, recorded_at, state, online, payload
		FROM snapshots
		WHERE printer = ? AND recorded_at BETWEEN ? AND ?
		ORDER BY recorded_at ASC`, printer, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("history: query range: %w", err)
	}
	snaps := make([]*sensors.Snapshot, 0, len(rows))
	for i := range rows {
		snap, err := decode(&rows[i])
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Prune deletes snapshots older than the retention window and reports how
// many rows went away.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := time.Now().Add(-keep).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune rows affected: %w", err)
	}
	if deleted > 0 {
		ctxlog.FromContext(ctx).Debug("History pruned.", "deleted", deleted)
	}
	return deleted, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(r *row) (*sensors.Snapshot, error) {
	var snap sensors.Snapshot
	if err := json.Unmarshal([]byte(r.Payload), &snap); err != nil {
		return nil, fmt.Errorf("history: decode snapshot %s: %w", r.ID, err)
	}
	return &snap, nil
}
