package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"BCRPSentinel/internal/model"
)

// SQLiteStore persists cache entries to a local SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	fresh freshness
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, loc *time.Location) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the HTTP handlers read while the refresh job writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, fresh: newFreshness(loc)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite cache opened: %s", dbPath)
	return s, nil
}

// SetClock overrides the clock used for freshness and timestamps.
func (s *SQLiteStore) SetClock(now func() time.Time) { s.fresh.now = now }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS indicator_cache (
			code         TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			record       TEXT NOT NULL,
			retrieved_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_cache_ts ON indicator_cache(retrieved_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code string, mode LookupMode) (*Entry, error) {
	var (
		raw string
		ts  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT record, retrieved_at FROM indicator_cache WHERE code = ?`, code,
	).Scan(&raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cache %s: %w", code, err)
	}

	retrievedAt := time.Unix(ts, 0)
	if !s.fresh.accept(retrievedAt, mode) {
		return nil, ErrNotFound
	}

	var rec model.SeriesRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", code, err)
	}
	return &Entry{Record: &rec, RetrievedAt: retrievedAt}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, code string, rec *model.SeriesRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", code, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO indicator_cache (code, name, record, retrieved_at)
		VALUES (?,?,?,?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			record = excluded.record,
			retrieved_at = excluded.retrieved_at`,
		code, rec.Name, string(data), s.fresh.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", code, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite cache")
	return s.db.Close()
}
