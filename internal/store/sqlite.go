package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bakkerme/newsfeed/internal/core"
)

const sqliteWatermarkKey = "latest_entry"

// SQLiteBackend keeps one row per item plus a meta row for the watermark.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	backend := &SQLiteBackend{db: db}
	if err := backend.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return backend, nil
}

func (b *SQLiteBackend) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	return sqliteWatermark(ctx, b.db)
}

func (b *SQLiteBackend) ReadItems(ctx context.Context) ([]core.Item, error) {
	return sqliteItems(ctx, b.db)
}

func (b *SQLiteBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin sqlite read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	items, err := sqliteItems(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	watermark, ok, err := sqliteWatermark(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Items: items, Watermark: watermark, HasWatermark: ok}, nil
}

func (b *SQLiteBackend) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite write: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM news_items"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear sqlite items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO news_items (id, publish_date, doc) VALUES (?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, item := range snapshot.Items {
		doc, err := json.Marshal(item)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode item %d: %w", item.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, item.ID, item.PublishDate.String(), string(doc)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert item %d: %w", item.ID, err)
		}
	}
	if _, err := tx.ExecContext(
		ctx,
		"INSERT INTO news_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		sqliteWatermarkKey,
		core.NewTimestamp(snapshot.Watermark).String(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write sqlite watermark: %w", err)
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS news_items (
		id INTEGER PRIMARY KEY,
		publish_date TEXT NOT NULL,
		doc TEXT NOT NULL
	)`,
		"CREATE INDEX IF NOT EXISTS news_items_publish_date_idx ON news_items (publish_date, id)",
		`CREATE TABLE IF NOT EXISTS news_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	}
	for _, stmt := range ddl {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create sqlite schema: %w", err)
		}
	}
	return nil
}

type sqliteQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// publish_date is stored in TimeLayout, which sorts lexically.
func sqliteItems(ctx context.Context, q sqliteQuerier) ([]core.Item, error) {
	rows, err := q.QueryContext(ctx, "SELECT doc FROM news_items ORDER BY publish_date, id")
	if err != nil {
		return nil, fmt.Errorf("query sqlite items: %w", err)
	}
	defer rows.Close()

	items := []core.Item{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var item core.Item
		if err := json.Unmarshal([]byte(doc), &item); err != nil {
			return nil, fmt.Errorf("decode sqlite item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func sqliteWatermark(ctx context.Context, q sqliteQuerier) (time.Time, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM news_meta WHERE key = ?", sqliteWatermarkKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query sqlite watermark: %w", err)
	}
	ts, err := core.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.Time, true, nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
	}
	if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
		dsn = dsn[:idx]
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
