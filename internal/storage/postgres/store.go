package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolDesk/internal/model"
	"poolDesk/internal/storage"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for daily snapshots and the token icon index.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

var _ storage.SnapshotStore = (*Store)(nil)

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, date string) (*model.DailySnapshotDocument, error) {
	var (
		doc   model.DailySnapshotDocument
		pools []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT date, version, pool_count, last_updated, pools
		FROM daily_pool_snapshots
		WHERE date = $1
	`, date)
	if err := row.Scan(&doc.Date, &doc.Version, &doc.PoolCount, &doc.LastUpdated, &pools); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if err := json.Unmarshal(pools, &doc.Pools); err != nil {
		return nil, fmt.Errorf("parse snapshot pools: %w", err)
	}
	if doc.Pools == nil {
		doc.Pools = make(map[string]model.PoolSnapshotEntry)
	}
	doc.LastUpdated = doc.LastUpdated.UTC()
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, doc *model.DailySnapshotDocument, expected int64) error {
	if doc == nil || doc.Date == "" {
		return fmt.Errorf("put snapshot: date is required")
	}
	pools := doc.Pools
	if pools == nil {
		pools = map[string]model.PoolSnapshotEntry{}
	}
	payload, err := json.Marshal(pools)
	if err != nil {
		return fmt.Errorf("marshal snapshot pools: %w", err)
	}
	next := expected + 1

	var query string
	if expected == 0 {
		query = `
			INSERT INTO daily_pool_snapshots (date, version, pool_count, last_updated, pools)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (date) DO NOTHING
		`
	} else {
		query = `
			UPDATE daily_pool_snapshots
			SET version = $2, pool_count = $3, last_updated = $4, pools = $5
			WHERE date = $1 AND version = $6
		`
	}

	args := []any{doc.Date, next, doc.PoolCount, doc.LastUpdated.UTC(), payload}
	if expected != 0 {
		args = append(args, expected)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: date %s expected %d", storage.ErrVersionConflict, doc.Date, expected)
	}
	doc.Version = next
	return nil
}

// LoadTokenIndex returns every icon index row in insertion order.
func (s *Store) LoadTokenIndex(ctx context.Context) ([]model.TokenIconEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, name, icon_id FROM token_icons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query token icons: %w", err)
	}
	defer rows.Close()

	entries := make([]model.TokenIconEntry, 0)
	for rows.Next() {
		var e model.TokenIconEntry
		if err := rows.Scan(&e.Symbol, &e.Name, &e.IconID); err != nil {
			return nil, fmt.Errorf("scan token icon: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token icons: %w", err)
	}
	return entries, nil
}

// InsertTokenIcons appends index rows in one batch.
func (s *Store) InsertTokenIcons(ctx context.Context, entries []model.TokenIconEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO token_icons (symbol, name, icon_id) VALUES ($1, $2, $3)`, e.Symbol, e.Name, e.IconID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert token icon: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity within timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.pool.Ping(ctx)
}
