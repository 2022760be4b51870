package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"BCRPSentinel/internal/model"
)

// PostgresStore persists cache entries in a Postgres table shared by all instances.
type PostgresStore struct {
	pool  *pgxpool.Pool
	fresh freshness
}

// PostgresConfig holds pool settings for the Postgres store.
type PostgresConfig struct {
	URL      string
	MinConns int
	MaxConns int
}

// NewPostgresStore connects, pings and migrates the cache table.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, loc *time.Location) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, fresh: newFreshness(loc)}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] postgres cache connected: %s@%s", poolCfg.ConnConfig.User, poolCfg.ConnConfig.Host)
	return s, nil
}

func (s *PostgresStore) SetClock(now func() time.Time) { s.fresh.now = now }

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS indicator_cache (
		code         TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		record       JSONB NOT NULL,
		retrieved_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, code string, mode LookupMode) (*Entry, error) {
	var (
		raw         []byte
		retrievedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT record, retrieved_at FROM indicator_cache WHERE code = $1`, code,
	).Scan(&raw, &retrievedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cache %s: %w", code, err)
	}
	if !s.fresh.accept(retrievedAt, mode) {
		return nil, ErrNotFound
	}

	var rec model.SeriesRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", code, err)
	}
	return &Entry{Record: &rec, RetrievedAt: retrievedAt}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, code string, rec *model.SeriesRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", code, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO indicator_cache (code, name, record, retrieved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			record = EXCLUDED.record,
			retrieved_at = EXCLUDED.retrieved_at`,
		code, rec.Name, data, s.fresh.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
