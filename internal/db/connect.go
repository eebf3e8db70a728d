package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/opencode-ai/logvault/internal/logging"

	"github.com/pressly/goose/v3"
)

// DB is an open log database. Path is empty for an in-memory store.
type DB struct {
	*sql.DB
	path string
}

// Options selects the storage target.
type Options struct {
	// Path is the database file location. Empty means in-memory.
	Path string
	// MaxSizeBytes bounds on-disk growth when positive. Once the bound is
	// reached further inserts fail, which the append path treats as a drop.
	MaxSizeBytes int64
}

const defaultPageSize = 4096

// Connect opens (or creates) the database, applies migrations, and enforces
// the optional size cap. Any failure here is fatal to the caller: a store
// that cannot open or migrate must not be used.
//
// Pragmas travel in the DSN so that every connection database/sql opens
// gets them. max_page_count in particular is per-connection and
// non-persistent; setting it any other way would leave pool-opened
// connections unbounded.
func Connect(opts Options) (*DB, error) {
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	var maxPages int64
	if opts.MaxSizeBytes > 0 {
		pageSize, err := probePageSize(opts.Path)
		if err != nil {
			return nil, err
		}
		maxPages = opts.MaxSizeBytes / pageSize
		if maxPages < 1 {
			maxPages = 1
		}
	}

	dsn := buildDSN(opts.Path, maxPages)
	logging.Debug("Opening database", "dsn", dsn)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.Path == "" {
		// An in-memory database exists per connection; the pool must not
		// open a second one.
		conn.SetMaxOpenConns(1)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &DB{DB: conn, path: opts.Path}, nil
}

// Path returns the backing file location, or "" for an in-memory store.
func (d *DB) Path() string {
	return d.path
}

// SizeBytes reports the on-disk size of a file-backed store. The second
// return is false for an in-memory store, where size is unknown.
func (d *DB) SizeBytes() (int64, bool) {
	if d.path == "" {
		return 0, false
	}
	var pageCount, pageSize int64
	if err := d.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, false
	}
	if err := d.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, false
	}
	return pageCount * pageSize, true
}

// buildDSN renders the connection string, carrying every pragma so the
// whole pool behaves identically.
func buildDSN(path string, maxPages int64) string {
	target := ":memory:"
	if path != "" {
		target = path
	}
	params := []string{
		fmt.Sprintf("_pragma=page_size(%d)", defaultPageSize),
		"_pragma=journal_mode(WAL)",
		"_pragma=cache_size(-8000)",
		"_pragma=synchronous(NORMAL)",
	}
	if maxPages > 0 {
		params = append(params, fmt.Sprintf("_pragma=max_page_count(%d)", maxPages))
	}
	return "file:" + target + "?" + strings.Join(params, "&")
}

// probePageSize reads the page size the database will actually use, so the
// byte bound converts into the right page bound. A pre-existing file keeps
// the page size it was created with, which may differ from the default.
func probePageSize(path string) (int64, error) {
	if path == "" {
		return defaultPageSize, nil
	}
	probe, err := sql.Open("sqlite3", buildDSN(path, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to probe page size: %w", err)
	}
	defer probe.Close()

	// page_count forces the header read; page_size then reflects the file
	// rather than the pending setting.
	var pageCount, pageSize int64
	if err := probe.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to probe page size: %w", err)
	}
	if err := probe.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to probe page size: %w", err)
	}
	if pageSize <= 0 {
		return 0, fmt.Errorf("invalid page size %d", pageSize)
	}
	return pageSize, nil
}
