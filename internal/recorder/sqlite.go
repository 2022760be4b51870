package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists refresh history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			duration_ms  INTEGER NOT NULL,
			trigger_type TEXT,
			requested    INTEGER,
			live         INTEGER,
			cached       INTEGER,
			stale        INTEGER,
			failed       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_ts ON refresh_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS fetch_outcomes (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   INTEGER NOT NULL REFERENCES refresh_runs(id),
			code     TEXT NOT NULL,
			source   TEXT,
			stale    INTEGER,
			points   INTEGER,
			failures INTEGER,
			error    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_code ON fetch_outcomes(code)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRefresh stores a run and its per-indicator outcomes in one transaction.
func (r *SQLiteRecorder) RecordRefresh(run *RefreshRun, outcomes []FetchOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO refresh_runs
		(timestamp, duration_ms, trigger_type, requested, live, cached, stale, failed)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Trigger,
		run.Requested, run.Live, run.Cached, run.Stale, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for _, o := range outcomes {
		if _, err := tx.Exec(`INSERT INTO fetch_outcomes
			(run_id, code, source, stale, points, failures, error)
			VALUES (?,?,?,?,?,?,?)`,
			runID, o.Code, o.Source, o.Stale, o.Points, o.Failures, o.Error,
		); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
