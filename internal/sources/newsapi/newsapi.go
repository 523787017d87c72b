// Package newsapi defines the upstream search contract used by the fetcher.
package newsapi

import (
	"context"
	"errors"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

// ErrQuotaExceeded is returned when the upstream refuses a request because
// the account's request or point budget is spent. It is never retried.
var ErrQuotaExceeded = errors.New("upstream quota exceeded")

// SearchRequest is one page request against the upstream search.
type SearchRequest struct {
	// Text is the OR-joined bunch of tags.
	Text string
	// Since is the earliest publish date to include.
	Since time.Time
	Offset int
	Number int

	Language        string
	SourceCountries string
	Sort            string
	SortDirection   string
}

// SearchResponse is one page of results. Available is the total number of
// matches the upstream reports for the query, not the page length.
type SearchResponse struct {
	Available int
	Items     []core.Item
}

// Searcher pages through an upstream news search.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}
