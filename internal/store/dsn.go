package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Open builds a backend from a DSN:
//
//	file:///var/lib/newsfeed    JSON files in a directory (also a bare path)
//	memory://                   process memory, for tests and dry runs
//	badger:///var/lib/newsfeed  embedded badger database directory
//	sqlite:///var/lib/news.db   SQLite database file
//	postgres://user@host/db     PostgreSQL
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store dsn is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	logger.Debug("opening store", "scheme", scheme)

	switch scheme {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewFileBackend(path)
	case "memory", "mem", "inmem":
		return NewMemoryBackend(), nil
	case "badger":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewBadgerBackend(path)
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		if parsed.RawQuery != "" {
			path += "?" + parsed.RawQuery
		}
		return NewSQLiteBackend(path)
	case "postgres", "postgresql":
		return NewPostgresBackend(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, scheme)
	}
}

// dsnPath accepts scheme:///abs, scheme://relative/dir, scheme:relative and
// bare paths.
func dsnPath(parsed *url.URL, raw string) (string, error) {
	var path string
	switch {
	case parsed.Scheme == "":
		path = raw
	case parsed.Opaque != "":
		path = parsed.Opaque
	default:
		path = parsed.Host + parsed.Path
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("store dsn %q has no path", raw)
	}
	return path, nil
}
