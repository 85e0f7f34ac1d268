// Package storage persists scan history in a local sqlite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rendis/gridrank/internal/model"
)

// ErrNotFound is returned when no scan has the requested id.
var ErrNotFound = eris.New("storage: scan not found")

// Store is a sqlite-backed scan history. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "storage: open db")
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "storage: set pragma %q", p)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		target_id TEXT NOT NULL,
		target_name TEXT NOT NULL,
		search_query TEXT NOT NULL,
		grid_spec_text TEXT NOT NULL,
		average_rank REAL NOT NULL,
		settings TEXT NOT NULL,
		result TEXT NOT NULL,
		insight TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_scans_created ON scans(created_at);
	CREATE INDEX IF NOT EXISTS idx_scans_target ON scans(target_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return eris.Wrap(err, "storage: create schema")
	}
	return nil
}

// Save inserts or replaces a history entry.
func (s *Store) Save(ctx context.Context, entry model.HistoryEntry) error {
	if entry.ID == "" {
		return eris.New("storage: entry has no id")
	}

	settings, err := json.Marshal(entry.Settings)
	if err != nil {
		return eris.Wrap(err, "storage: marshal settings")
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return eris.Wrap(err, "storage: marshal result")
	}
	var insight sql.NullString
	if entry.Insight != nil {
		b, err := json.Marshal(entry.Insight)
		if err != nil {
			return eris.Wrap(err, "storage: marshal insight")
		}
		insight = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans
			(id, created_at, target_id, target_name, search_query, grid_spec_text, average_rank, settings, result, insight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UnixNano(),
		entry.Settings.Target.ID,
		entry.Settings.Target.Name,
		entry.Settings.SearchQuery,
		entry.Settings.GridSpecText,
		entry.Result.Summary.AverageRank,
		string(settings),
		string(result),
		insight,
	)
	if err != nil {
		return eris.Wrapf(err, "storage: save scan %s", entry.ID)
	}
	return nil
}

const selectColumns = `SELECT id, created_at, settings, result, insight FROM scans`

// Get loads one entry by id.
func (s *Store) Get(ctx context.Context, id string) (*model.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the most recent entries first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list scans")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "storage: iterate scans")
	}
	return out, nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "storage: delete scan %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// SaveInsight attaches generated insight to an existing entry.
func (s *Store) SaveInsight(ctx context.Context, id string, insight model.Insight) error {
	b, err := json.Marshal(insight)
	if err != nil {
		return eris.Wrap(err, "storage: marshal insight")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE scans SET insight = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return eris.Wrapf(err, "storage: save insight %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Count returns the number of stored scans.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "storage: count scans")
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*model.HistoryEntry, error) {
	var (
		entry     model.HistoryEntry
		createdAt int64
		settings  string
		result    string
		insight   sql.NullString
	)
	if err := r.Scan(&entry.ID, &createdAt, &settings, &result, &insight); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "storage: scan row")
	}

	entry.Timestamp = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(settings), &entry.Settings); err != nil {
		return nil, eris.Wrapf(err, "storage: decode settings of %s", entry.ID)
	}
	if err := json.Unmarshal([]byte(result), &entry.Result); err != nil {
		return nil, eris.Wrapf(err, "storage: decode result of %s", entry.ID)
	}
	if insight.Valid {
		entry.Insight = &model.Insight{}
		if err := json.Unmarshal([]byte(insight.String), entry.Insight); err != nil {
			return nil, eris.Wrapf(err, "storage: decode insight of %s", entry.ID)
		}
	}
	return &entry, nil
}
