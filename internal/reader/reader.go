// Package reader serves incremental "everything after my watermark" reads
// from the stored window.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/store"
	"github.com/bakkerme/newsfeed/internal/window"
)

const (
	DefaultLookback = 48 * time.Hour
	DefaultMaxItems = 700
)

// Response is the Read API payload. LastNewsTime is always the store's
// watermark, even when News was truncated to the newest items. A consumer
// that resumes from it skips whatever truncation left out.
type Response struct {
	LastNewsTime core.Timestamp `json:"last_news_time"`
	News         []core.Item    `json:"news"`
	// Truncated reports whether older matching items were left out.
	Truncated bool `json:"-"`
}

type Options struct {
	Lookback time.Duration
	// MaxItems caps a response; <= 0 means unlimited.
	MaxItems int
	Now      func() time.Time
}

type Reader struct {
	store  store.Backend
	opts   Options
	logger *slog.Logger
}

func New(backend store.Backend, opts Options, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reader{store: backend, opts: opts, logger: logger}
}

// GetSince parses a consumer supplied watermark. A missing or unparseable
// value falls back to the default lookback window.
func (r *Reader) GetSince(ctx context.Context, raw string) (Response, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.Since(ctx, nil, r.opts.MaxItems)
	}
	ts, err := core.ParseTimestamp(raw)
	if err != nil {
		r.logger.Warn("unparseable watermark, using default lookback", "since", raw, "error", err)
		return r.Since(ctx, nil, r.opts.MaxItems)
	}
	after := ts.Time
	return r.Since(ctx, &after, r.opts.MaxItems)
}

// Since returns items published strictly after after, or within the default
// lookback when after is nil.
func (r *Reader) Since(ctx context.Context, after *time.Time, maxItems int) (Response, error) {
	tracer := otel.Tracer("newsfeed/reader")
	ctx, span := tracer.Start(ctx, "reader.since")
	defer span.End()

	var watermark time.Time
	if after != nil {
		watermark = after.UTC()
	} else {
		watermark = r.opts.Now().UTC().Add(-r.opts.Lookback)
	}

	snap, err := r.store.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("read store: %w", err)
	}

	news, truncated := window.After(snap.Items, watermark, maxItems)
	resp := Response{News: news, Truncated: truncated}
	if snap.HasWatermark {
		resp.LastNewsTime = core.NewTimestamp(snap.Watermark)
	} else {
		// Nothing ingested yet; hand back the effective read boundary.
		resp.LastNewsTime = core.NewTimestamp(watermark)
	}

	span.SetAttributes(
		attribute.String("reader.after", core.NewTimestamp(watermark).String()),
		attribute.Int("reader.items", len(news)),
		attribute.Bool("reader.truncated", truncated),
	)
	r.logger.Debug("read served", "after", core.NewTimestamp(watermark).String(), "returned", len(news), "stored", len(snap.Items), "truncated", truncated)
	return resp, nil
}
