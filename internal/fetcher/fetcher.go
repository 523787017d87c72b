// Package fetcher drains every result page of one query bunch.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultPageSize = 100

// Options are the per-request filters sent with every page.
type Options struct {
	PageSize int
	// MaxPages caps the pages fetched after the first one. 0 means no cap.
	MaxPages int

	Language        string
	SourceCountries string
	Sort            string
	SortDirection   string
}

// Result is what one bunch produced. Err is the upstream error that aborted
// pagination, if any; Items then holds the pages collected before it.
type Result struct {
	Items     []core.Item
	Available int
	Pages     int
	Err       error
}

type Fetcher struct {
	searcher newsapi.Searcher
	opts     Options
	logger   *slog.Logger
}

func New(searcher newsapi.Searcher, opts Options, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Fetcher{searcher: searcher, opts: opts, logger: logger}
}

// Fetch requests the first page, then pages 1..available/pageSize at
// offset page*pageSize. An empty page ends pagination early.
func (f *Fetcher) Fetch(ctx context.Context, bunch string, since time.Time) Result {
	tracer := otel.Tracer("newsfeed/fetcher")
	ctx, span := tracer.Start(ctx, "fetcher.fetch")
	span.SetAttributes(
		attribute.String("fetcher.bunch", bunch),
		attribute.String("run.id", core.RunIDFromContext(ctx)),
	)
	defer span.End()

	logger := f.logger.With("bunch", bunch)
	if runID := core.RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}

	result := f.fetch(ctx, logger, bunch, since)

	span.SetAttributes(
		attribute.Int("fetcher.available", result.Available),
		attribute.Int("fetcher.pages", result.Pages),
		attribute.Int("fetcher.items", len(result.Items)),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result
}

func (f *Fetcher) fetch(ctx context.Context, logger *slog.Logger, bunch string, since time.Time) Result {
	pageSize := f.opts.PageSize
	first, err := f.page(ctx, bunch, since, 0)
	if err != nil {
		logger.Warn("first page failed", "error", err)
		return Result{Items: []core.Item{}, Err: fmt.Errorf("fetch %q page 0: %w", bunch, err)}
	}
	if first.Available == 0 {
		logger.Info("no news available")
		return Result{Items: []core.Item{}}
	}

	result := Result{
		Items:     append([]core.Item{}, first.Items...),
		Available: first.Available,
		Pages:     1,
	}
	logger.Info("news available", "available", first.Available, "page_size", pageSize)
	if len(first.Items) == 0 {
		return result
	}

	totalPages := first.Available / pageSize
	if f.opts.MaxPages > 0 && totalPages > f.opts.MaxPages {
		logger.Info("capping pages", "total_pages", totalPages, "max_pages", f.opts.MaxPages)
		totalPages = f.opts.MaxPages
	}
	for page := 1; page <= totalPages; page++ {
		resp, err := f.page(ctx, bunch, since, page*pageSize)
		if err != nil {
			logger.Warn("page failed, keeping partial results", "page", page, "collected", len(result.Items), "error", err)
			result.Err = fmt.Errorf("fetch %q page %d: %w", bunch, page, err)
			return result
		}
		result.Pages++
		if len(resp.Items) == 0 {
			logger.Debug("empty page, stopping", "page", page)
			return result
		}
		result.Items = append(result.Items, resp.Items...)
		logger.Debug("page fetched", "page", page, "items", len(resp.Items))
	}
	return result
}

func (f *Fetcher) page(ctx context.Context, bunch string, since time.Time, offset int) (newsapi.SearchResponse, error) {
	return f.searcher.Search(ctx, newsapi.SearchRequest{
		Text:            bunch,
		Since:           since,
		Offset:          offset,
		Number:          f.opts.PageSize,
		Language:        f.opts.Language,
		SourceCountries: f.opts.SourceCountries,
		Sort:            f.opts.Sort,
		SortDirection:   f.opts.SortDirection,
	})
}
