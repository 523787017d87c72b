package rss

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
)

const orSeparator = " OR "

type cachedFeed struct {
	items     []Entry
	fetchedAt time.Time
}

// FeedSearcher answers search requests from a fixed set of feeds. A request's
// text is split on " OR " and an entry matches when any term occurs in its
// title or description, case-insensitively. Results are newest first and
// paginated by offset like the upstream search API.
type FeedSearcher struct {
	fetcher   Fetcher
	feeds     []string
	userAgent string
	cacheTTL  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedFeed
}

type FeedSearcherOptions struct {
	Feeds     []string
	UserAgent string
	// CacheTTL bounds how long a fetched feed is reused across page requests.
	// Defaults to one minute.
	CacheTTL time.Duration
	Now      func() time.Time
}

func NewFeedSearcher(fetcher Fetcher, opts FeedSearcherOptions, logger *slog.Logger) *FeedSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FeedSearcher{
		fetcher:   fetcher,
		feeds:     append([]string(nil), opts.Feeds...),
		userAgent: opts.UserAgent,
		cacheTTL:  opts.CacheTTL,
		now:       opts.Now,
		logger:    logger,
		cache:     make(map[string]cachedFeed),
	}
}

func (s *FeedSearcher) Search(ctx context.Context, req newsapi.SearchRequest) (newsapi.SearchResponse, error) {
	terms := splitTerms(req.Text)
	if len(terms) == 0 {
		return newsapi.SearchResponse{Items: []core.Item{}}, nil
	}

	var (
		failures []error
		seen     = make(map[int64]bool)
		matches  []core.Item
	)
	for _, feedURL := range s.feeds {
		entries, err := s.entries(ctx, feedURL)
		if err != nil {
			s.logger.Warn("feed fetch failed", "feed", feedURL, "error", err)
			failures = append(failures, err)
			continue
		}
		for _, entry := range entries {
			if !req.Since.IsZero() && entry.PublishedAt.Before(req.Since) {
				continue
			}
			if !matchesAny(entry, terms) {
				continue
			}
			item := toCoreItem(entry)
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			matches = append(matches, item)
		}
	}
	if len(failures) > 0 && len(failures) == len(s.feeds) {
		return newsapi.SearchResponse{}, fmt.Errorf("rss search: all feeds failed: %w", errors.Join(failures...))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.PublishDate.Equal(b.PublishDate.Time) {
			return a.PublishDate.After(b.PublishDate.Time)
		}
		return a.ID > b.ID
	})

	resp := newsapi.SearchResponse{Available: len(matches), Items: []core.Item{}}
	if req.Offset >= len(matches) {
		return resp, nil
	}
	end := len(matches)
	if req.Number > 0 && req.Offset+req.Number < end {
		end = req.Offset + req.Number
	}
	resp.Items = append(resp.Items, matches[req.Offset:end]...)
	return resp, nil
}

func (s *FeedSearcher) entries(ctx context.Context, feedURL string) ([]Entry, error) {
	now := s.now()
	s.mu.Lock()
	cached, ok := s.cache[feedURL]
	s.mu.Unlock()
	if ok && now.Sub(cached.fetchedAt) < s.cacheTTL {
		return cached.items, nil
	}

	items, err := s.fetcher.Fetch(ctx, feedURL, FetchOptions{UserAgent: s.userAgent})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[feedURL] = cachedFeed{items: items, fetchedAt: now}
	s.mu.Unlock()
	return items, nil
}

func splitTerms(text string) []string {
	var terms []string
	for _, part := range strings.Split(text, orSeparator) {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			terms = append(terms, part)
		}
	}
	return terms
}

func matchesAny(entry Entry, terms []string) bool {
	haystack := strings.ToLower(entry.Title + "\n" + entry.Description + "\n" + strings.Join(entry.Categories, "\n"))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

func toCoreItem(entry Entry) core.Item {
	text := itemText(entry.Content)
	summary := itemText(entry.Description)
	if text == "" {
		text, summary = summary, ""
	}
	return core.Item{
		ID:          ItemID(entry),
		Title:       strings.TrimSpace(entry.Title),
		URL:         strings.TrimSpace(entry.Link),
		Text:        text,
		Summary:     summary,
		PublishDate: core.NewTimestamp(entry.PublishedAt),
	}
}

// ItemID derives a stable positive id from the entry's GUID, falling back to
// its link and then its title.
func ItemID(entry Entry) int64 {
	key := strings.TrimSpace(entry.GUID)
	if key == "" {
		key = strings.TrimSpace(entry.Link)
	}
	if key == "" {
		key = strings.TrimSpace(entry.Title)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & (1<<63 - 1))
}
