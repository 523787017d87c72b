package impl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bakkerme/newsfeed/internal/retry"
	"github.com/bakkerme/newsfeed/internal/sources/rss"
)

// Fetcher downloads and parses feeds with gofeed. Transient failures are
// retried a few times per feed.
type Fetcher struct {
	parser    *gofeed.Parser
	userAgent string
	retry     retry.Config
	now       func() time.Time
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = "newsfeed/0.1"
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Fetcher{
		parser:    parser,
		userAgent: userAgent,
		retry:     retry.Config{Attempts: 3, BaseDelay: 200 * time.Millisecond},
		now:       time.Now,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string, options rss.FetchOptions) ([]rss.Entry, error) {
	// gofeed reads the user agent off the parser, so per-call overrides need
	// their own parser value.
	parser := *f.parser
	parser.UserAgent = f.userAgent
	if options.UserAgent != "" {
		parser.UserAgent = options.UserAgent
	}

	var feed *gofeed.Feed
	err := retry.Do(ctx, f.retry, func() error {
		parsed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	return toEntries(feed.Items, options.MaxEntries, f.now().UTC()), nil
}

// toEntries converts parsed items. Undated items are stamped with fetchedAt.
func toEntries(items []*gofeed.Item, limit int, fetchedAt time.Time) []rss.Entry {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]rss.Entry, 0, limit)
	for _, item := range items[:limit] {
		if item == nil {
			continue
		}
		published := fetchedAt
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		out = append(out, rss.Entry{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Categories:  item.Categories,
			PublishedAt: published,
		})
	}
	return out
}
