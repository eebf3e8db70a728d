// Package store owns the durable log table: appends, queries, id-adjacency
// navigation, bulk clearing and size accounting.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/opencode-ai/logvault/internal/db"
	"github.com/opencode-ai/logvault/internal/event"
	"github.com/opencode-ai/logvault/internal/logging"
	"github.com/opencode-ai/logvault/internal/query"
)

// Direction selects a navigation neighbor.
type Direction int

const (
	Next Direction = iota
	Previous
)

const recordColumns = "id, timestamp, level, message, label, tag, metadata_json, app_name, source, file, function, line"

// Store executes all reads and writes against the log table. Writes are
// serialized internally; reads may run concurrently with the writer and
// with each other.
type Store struct {
	db *db.DB
	mu sync.Mutex // guards Append and ClearAll
}

func New(d *db.DB) *Store {
	return &Store{db: d}
}

// Append inserts one event and returns the persisted record with its
// assigned id. Ids are strictly increasing in persist order and never
// reused, even across ClearAll.
//
// A failed write returns (nil, false) and nothing else: past admission,
// logging is best-effort, and a storage fault (disk full, size cap reached,
// device gone) must never block or crash producers.
func (s *Store) Append(ctx context.Context, ev event.LogEvent) (*event.LogRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (timestamp, level, message, label, tag, metadata_json, app_name, source, file, function, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.FormatTime(ev.Timestamp),
		ev.Level.String(),
		ev.Message,
		ev.Label,
		ev.Tag,
		ev.MetadataJSON,
		ev.AppName,
		ev.Source,
		ev.File,
		ev.Function,
		ev.Line,
	)
	if err != nil {
		logging.Debug("Dropped log event on failed append", "error", err)
		return nil, false
	}
	id, err := res.LastInsertId()
	if err != nil {
		logging.Debug("Dropped log event on failed append", "error", err)
		return nil, false
	}
	return &event.LogRecord{ID: id, LogEvent: ev}, true
}

// Query returns the records matching q, ordered and paginated per the
// translator's plan.
func (s *Store) Query(ctx context.Context, q event.LogQuery) ([]event.LogRecord, error) {
	return s.run(ctx, query.Build(q))
}

// QueryIDs is Query restricted to the given id set. It shares the exact
// predicate logic with Query, which is what lets live-stream filtering
// reuse bulk-query semantics verbatim. An empty id set returns empty
// without touching storage.
func (s *Store) QueryIDs(ctx context.Context, q event.LogQuery, ids []int64) ([]event.LogRecord, error) {
	plan, ok := query.BuildWithIDs(q, ids)
	if !ok {
		return nil, nil
	}
	return s.run(ctx, plan)
}

func (s *Store) run(ctx context.Context, plan query.Plan) ([]event.LogRecord, error) {
	stmt := "SELECT " + recordColumns + " FROM logs"
	if plan.Where != "" {
		stmt += " WHERE " + plan.Where
	}
	stmt += " ORDER BY " + plan.OrderBy
	if plan.Paging != "" {
		stmt += " " + plan.Paging
	}

	rows, err := s.db.QueryContext(ctx, stmt, plan.Args...)
	if err != nil {
		return nil, fmt.Errorf("log query failed: %w", err)
	}
	defer rows.Close()

	var records []event.LogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("log query failed: %w", err)
	}
	return records, nil
}

// Navigate returns the record with the nearest id strictly greater (Next)
// or strictly less (Previous) than fromID, ignoring any filter. It returns
// nil when fromID is already at that extreme.
func (s *Store) Navigate(ctx context.Context, fromID int64, dir Direction) (*event.LogRecord, error) {
	stmt := "SELECT " + recordColumns + " FROM logs WHERE id > ? ORDER BY id ASC LIMIT 1"
	if dir == Previous {
		stmt = "SELECT " + recordColumns + " FROM logs WHERE id < ? ORDER BY id DESC LIMIT 1"
	}
	row := s.db.QueryRowContext(ctx, stmt, fromID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("log navigation failed: %w", err)
	}
	return &rec, nil
}

// ClearAll deletes every record. The id sequence is preserved, so later
// appends continue from where it left off.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM logs"); err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	return nil
}

// SizeBytes reports the database size. The second return is false when the
// store is in-memory and size is unknown.
func (s *Store) SizeBytes() (int64, bool) {
	return s.db.SizeBytes()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (event.LogRecord, error) {
	var rec event.LogRecord
	var ts, level string
	err := row.Scan(
		&rec.ID,
		&ts,
		&level,
		&rec.Message,
		&rec.Label,
		&rec.Tag,
		&rec.MetadataJSON,
		&rec.AppName,
		&rec.Source,
		&rec.File,
		&rec.Function,
		&rec.Line,
	)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan log record: %w", err)
	}
	if rec.Timestamp, err = event.ParseTime(ts); err != nil {
		return rec, fmt.Errorf("failed to parse stored timestamp: %w", err)
	}
	if rec.Level, err = event.ParseLevel(level); err != nil {
		return rec, fmt.Errorf("failed to parse stored level: %w", err)
	}
	return rec, nil
}
