// Package rss reads RSS and Atom feeds and answers news searches from them.
package rss

import (
	"context"
	"time"
)

type FetchOptions struct {
	// MaxEntries caps the entries returned per feed. 0 returns all of them.
	MaxEntries int
	UserAgent  string
}

// Entry is one feed item, before it becomes a core.Item.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Categories  []string
	PublishedAt time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, feedURL string, options FetchOptions) ([]Entry, error)
}
