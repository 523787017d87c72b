package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakkerme/newsfeed/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS newsfeed_items (
  id BIGINT PRIMARY KEY,
  publish_date TIMESTAMPTZ NOT NULL,
  doc JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_newsfeed_items_publish_date ON newsfeed_items(publish_date, id);
CREATE TABLE IF NOT EXISTS newsfeed_meta (
  key TEXT PRIMARY KEY,
  value TIMESTAMPTZ NOT NULL
);
`

type PostgresBackend struct{ pool *pgxpool.Pool }

func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	return postgresWatermark(ctx, b.pool)
}

func (b *PostgresBackend) ReadItems(ctx context.Context) ([]core.Item, error) {
	return postgresItems(ctx, b.pool)
}

func (b *PostgresBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin postgres read: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, err := postgresItems(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	watermark, ok, err := postgresWatermark(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Items: items, Watermark: watermark, HasWatermark: ok}, nil
}

func (b *PostgresBackend) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin postgres write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM newsfeed_items`)
	for _, item := range snapshot.Items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %d: %w", item.ID, err)
		}
		batch.Queue(`INSERT INTO newsfeed_items (id, publish_date, doc) VALUES ($1, $2, $3)`,
			item.ID, item.PublishDate.Time, raw)
	}
	batch.Queue(`
INSERT INTO newsfeed_meta (key, value) VALUES ('latest_entry', $1)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		core.NewTimestamp(snapshot.Watermark).Time)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres write snapshot: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres write snapshot: %w", err)
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func postgresItems(ctx context.Context, q pgQuerier) ([]core.Item, error) {
	rows, err := q.Query(ctx, `SELECT doc FROM newsfeed_items ORDER BY publish_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query postgres items: %w", err)
	}
	defer rows.Close()

	items := []core.Item{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var item core.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode postgres item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func postgresWatermark(ctx context.Context, q pgQuerier) (time.Time, bool, error) {
	var value time.Time
	err := q.QueryRow(ctx, `SELECT value FROM newsfeed_meta WHERE key = 'latest_entry'`).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query postgres watermark: %w", err)
	}
	return value.UTC(), true, nil
}
