package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one recorded merge run.
type Entry struct {
	ID            int64
	RunID         string
	Session       string
	User          string
	SourceFile    string
	TimelineFile  string
	PointsBefore  int
	PointsAdded   int
	PointsSkipped int
	PointsTotal   int
	CreatedAt     time.Time
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one merge run.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO merge_runs (
            run_id, session, username, source_file, timeline_file,
            points_before, points_added, points_skipped, points_total, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Session,
		entry.User,
		entry.SourceFile,
		entry.TimelineFile,
		entry.PointsBefore,
		entry.PointsAdded,
		entry.PointsSkipped,
		entry.PointsTotal,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert merge run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = createdAt
	return nil
}

// Recent returns the most recent merge runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, session, username, source_file, timeline_file,
                points_before, points_added, points_skipped, points_total, created_at
         FROM merge_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query merge runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ForIdentity returns runs for one session/user pair, newest first.
func (s *Store) ForIdentity(ctx context.Context, session, user string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, session, username, source_file, timeline_file,
                points_before, points_added, points_skipped, points_total, created_at
         FROM merge_runs WHERE session = ? AND username = ? ORDER BY id DESC LIMIT ?`,
		session, user, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query merge runs for identity: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var createdRaw string
	if err := rows.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.Session,
		&entry.User,
		&entry.SourceFile,
		&entry.TimelineFile,
		&entry.PointsBefore,
		&entry.PointsAdded,
		&entry.PointsSkipped,
		&entry.PointsTotal,
		&createdRaw,
	); err != nil {
		return Entry{}, fmt.Errorf("scan merge run: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
