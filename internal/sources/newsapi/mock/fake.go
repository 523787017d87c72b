package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
)

// Fake generates a small deterministic result set for any query. It backs
// the "fake" provider used for local development without an API key.
type Fake struct {
	// Available is the number of matches reported per query. Defaults to 10.
	Available int
	Now       func() time.Time
}

func (f Fake) Search(ctx context.Context, req newsapi.SearchRequest) (newsapi.SearchResponse, error) {
	_ = ctx
	available := f.Available
	if available <= 0 {
		available = 10
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	number := req.Number
	if number <= 0 {
		number = available
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(req.Text))
	seed := int64(h.Sum64() >> 33)

	// Items are spread one minute apart ending at the current minute, newest first.
	latest := now().UTC().Truncate(time.Minute)
	matches := 0
	for matches < available {
		if !req.Since.IsZero() && latest.Add(-time.Duration(matches)*time.Minute).Before(req.Since) {
			break
		}
		matches++
	}
	items := make([]core.Item, 0, number)
	for i := req.Offset; i < matches && len(items) < number; i++ {
		published := latest.Add(-time.Duration(i) * time.Minute)
		items = append(items, core.Item{
			ID:          seed + published.Unix()/60,
			Title:       fmt.Sprintf("%s #%d", req.Text, i+1),
			URL:         fmt.Sprintf("https://news.invalid/%d/%d", seed, i+1),
			Text:        fmt.Sprintf("Generated article %d for %q.", i+1, req.Text),
			PublishDate: core.NewTimestamp(published),
		})
	}
	return newsapi.SearchResponse{Available: matches, Items: items}, nil
}
