// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of fetch runs: one row per record
// attempted, with where it was written and whether it reached the library.
// The ledger is write-only history; nothing in it is read back to decide
// what to download or which collection to use.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperscout/internal/acquire"
)

// Status values stored per entry.
const (
	StatusDownloaded    = "downloaded"
	StatusCataloged     = "cataloged"
	StatusCatalogFailed = "catalog_failed"
	StatusFailed        = "failed"
	StatusSkipped       = "skipped"
)

const defaultLimit = 20

// Entry is one recorded fetch attempt.
type Entry struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Title     string    `json:"title"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	Path      string    `json:"path,omitempty"`
	ItemKey   string    `json:"item_key,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path, creating parent directories and
// the schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			title TEXT NOT NULL,
			pdf_url TEXT,
			path TEXT,
			item_key TEXT,
			status TEXT NOT NULL,
			error TEXT,
			pages INTEGER,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_run_id ON fetches(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// NewRunID returns a fresh identifier grouping the entries of one run.
func NewRunID() string {
	return uuid.NewString()
}

// EntryFromResult converts a fetch result into a ledger entry.
func EntryFromResult(runID string, res acquire.FetchResult, pages int) Entry {
	e := Entry{
		RunID:   runID,
		Title:   res.Record.Title,
		PDFURL:  res.Record.PDFURL,
		Path:    res.Path,
		ItemKey: res.ItemKey,
		Pages:   pages,
	}
	switch {
	case res.Skipped:
		e.Status = StatusSkipped
	case res.Err != nil:
		e.Status = StatusFailed
		e.Error = res.Err.Error()
	case res.CatalogErr != nil:
		e.Status = StatusCatalogFailed
		e.Error = res.CatalogErr.Error()
	case res.ItemKey != "":
		e.Status = StatusCataloged
	default:
		e.Status = StatusDownloaded
	}
	return e
}

// Record inserts e and returns its row id. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.RunID == "" {
		return 0, errors.New("ledger entry has no run id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (run_id, title, pdf_url, path, item_key, status, error, pages, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Title, e.PDFURL, e.Path, e.ItemKey, e.Status, e.Error, e.Pages,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting ledger entry: %w", err)
	}
	return res.LastInsertId()
}

// RecordRun stores one entry per result under runID in a single
// transaction. pages may be nil.
func (s *Store) RecordRun(ctx context.Context, runID string, results []acquire.FetchResult, pages func(path string) int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fetches (run_id, title, pdf_url, path, item_key, status, error, pages, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC().Format(time.RFC3339Nano)
	for _, res := range results {
		n := 0
		if pages != nil && res.OK() {
			n = pages(res.Path)
		}
		e := EntryFromResult(runID, res, n)
		if _, err := stmt.ExecContext(ctx,
			e.RunID, e.Title, e.PDFURL, e.Path, e.ItemKey, e.Status, e.Error, e.Pages, now,
		); err != nil {
			return fmt.Errorf("inserting ledger entry %q: %w", e.Title, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses the default of 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.query(ctx,
		`SELECT id, run_id, title, pdf_url, path, item_key, status, error, pages, created_at
		 FROM fetches ORDER BY id DESC LIMIT ?`, limit)
}

// Run returns the entries of one run in insertion order.
func (s *Store) Run(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, run_id, title, pdf_url, path, item_key, status, error, pages, created_at
		 FROM fetches WHERE run_id = ? ORDER BY id`, runID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var pdfURL, path, itemKey, errMsg, ts sql.NullString
		var pages sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Title, &pdfURL, &path, &itemKey,
			&e.Status, &errMsg, &pages, &ts); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		e.PDFURL = pdfURL.String
		e.Path = path.String
		e.ItemKey = itemKey.String
		e.Error = errMsg.String
		e.Pages = int(pages.Int64)
		if t, err := time.Parse(time.RFC3339Nano, ts.String); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
