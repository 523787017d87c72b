package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/newsfeed/internal/sources/rss"
)

// Fetcher serves canned entries per feed URL and counts fetches.
type Fetcher struct {
	Entries map[string][]rss.Entry
	Errors  map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, options rss.FetchOptions) ([]rss.Entry, error) {
	_ = ctx
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[feedURL]++
	f.mu.Unlock()

	if err := f.Errors[feedURL]; err != nil {
		return nil, err
	}
	entries := f.Entries[feedURL]
	if n := options.MaxEntries; n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

func (f *Fetcher) Calls(feedURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[feedURL]
}
