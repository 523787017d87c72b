// Package ingest runs sync cycles: plan the tag list into bunches, fetch
// each bunch since the stored watermark, and fold the results into the
// stored window.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/fetcher"
	"github.com/bakkerme/newsfeed/internal/filter"
	"github.com/bakkerme/newsfeed/internal/planner"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
	"github.com/bakkerme/newsfeed/internal/store"
	"github.com/bakkerme/newsfeed/internal/window"
)

const (
	DefaultMaxQueryChars = 100
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultEpsilon       = time.Second
)

// BunchFetcher drains one bunch. *fetcher.Fetcher implements it.
type BunchFetcher interface {
	Fetch(ctx context.Context, bunch string, since time.Time) fetcher.Result
}

// Recorder receives every finished cycle report.
type Recorder interface {
	RecordCycle(report *core.CycleReport)
}

type Options struct {
	MaxQueryChars int
	Retention     time.Duration
	Epsilon       time.Duration
	Filters       *filter.Set
	Recorder      Recorder
	Now           func() time.Time
}

type Syncer struct {
	store   store.Backend
	fetcher BunchFetcher
	opts    Options
	logger  *slog.Logger
}

func NewSyncer(backend store.Backend, f BunchFetcher, opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxQueryChars == 0 {
		opts.MaxQueryChars = DefaultMaxQueryChars
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	// Timestamps have second resolution; a smaller step would not move
	// the watermark.
	if opts.Epsilon < time.Second {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{store: backend, fetcher: f, opts: opts, logger: logger}
}

// Run executes one cycle for tags. Upstream failures end the cycle early but
// are not returned; only persistence failures and cancellation are. A cycle
// that collects nothing leaves the store untouched.
func (s *Syncer) Run(ctx context.Context, tags []string) (*core.CycleReport, error) {
	runID := core.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = core.WithRunID(ctx, runID)
	}
	logger := s.logger.With("run_id", runID)
	ctx = core.WithLogger(ctx, logger)

	tracer := otel.Tracer("newsfeed/ingest")
	ctx, span := tracer.Start(ctx, "ingest.cycle")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("ingest.tags", len(tags)),
	)
	defer span.End()

	now := s.opts.Now().UTC()
	report := &core.CycleReport{
		RunID:     runID,
		StartedAt: now,
		Status:    core.CycleStatusFailed,
	}
	defer s.finish(report)

	err := s.run(ctx, logger, now, tags, report)
	span.SetAttributes(
		attribute.String("ingest.status", string(report.Status)),
		attribute.Int("ingest.fetched", report.Fetched),
		attribute.Int("ingest.added", report.Added),
		attribute.Int("ingest.evicted", report.Evicted),
	)
	if err != nil {
		report.Status = core.CycleStatusFailed
		report.Errors = append(report.Errors, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("cycle failed", "error", err)
		return report, err
	}
	span.SetStatus(codes.Ok, "")
	return report, nil
}

func (s *Syncer) run(ctx context.Context, logger *slog.Logger, now time.Time, tags []string, report *core.CycleReport) error {
	horizon := now.Add(-s.opts.Retention)

	transition(ctx, logger, core.CycleStatePlanning)
	watermark, ok, err := s.store.ReadWatermark(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	if !ok {
		watermark = core.NewTimestamp(horizon).Time
		logger.Info("no stored watermark, starting at retention horizon", "watermark", core.NewTimestamp(watermark).String())
	}
	report.Watermark = core.NewTimestamp(watermark)

	bunches := planner.Plan(tags, s.opts.MaxQueryChars)
	report.Bunches = len(bunches)
	logger.Info("plan ready", "tags", len(tags), "bunches", len(bunches), "since", report.Watermark.String())
	if len(bunches) == 0 {
		report.StopReason = core.StopReasonEmptyPlan
		report.Status = core.CycleStatusNoop
		transition(ctx, logger, core.CycleStateIdle)
		return nil
	}

	fetched := []core.Item{}
	for i, bunch := range bunches {
		if err := ctx.Err(); err != nil {
			report.StopReason = core.StopReasonCancelled
			return err
		}
		transition(ctx, logger, core.CycleStateFetching, "bunch_index", i, "bunch", bunch)
		result := s.fetcher.Fetch(ctx, bunch, watermark)
		report.BunchesFetched++
		fetched = append(fetched, result.Items...)
		if result.Err != nil {
			report.Errors = append(report.Errors, result.Err.Error())
		}
		if errors.Is(result.Err, newsapi.ErrQuotaExceeded) {
			logger.Warn("upstream quota exceeded, stopping cycle", "bunch_index", i, "kept", len(result.Items))
			report.StopReason = core.StopReasonQuota
			break
		}
		if len(result.Items) == 0 {
			logger.Info("bunch returned nothing, stopping cycle", "bunch_index", i)
			report.StopReason = core.StopReasonEmptyBunch
			break
		}
	}
	report.Fetched = len(fetched)

	// Upstreams that ignore since can return items already behind the
	// watermark; merging them would not move it forward.
	fresh, stale := window.Since(fetched, watermark)
	report.Stale = stale
	if stale > 0 {
		logger.Warn("dropped items published before the watermark", "stale", stale, "since", report.Watermark.String())
	}

	if len(fresh) == 0 {
		logger.Info("nothing collected, store left untouched")
		report.Status = core.CycleStatusNoop
		transition(ctx, logger, core.CycleStateIdle)
		return nil
	}
	if err := ctx.Err(); err != nil {
		report.StopReason = core.StopReasonCancelled
		return err
	}

	kept, dropped := s.opts.Filters.Apply(ctx, fresh)
	report.Filtered = dropped

	transition(ctx, logger, core.CycleStateMerging, "fetched", len(fetched), "fresh", len(fresh), "kept", len(kept))
	existing, err := s.store.ReadItems(ctx)
	if err != nil {
		return fmt.Errorf("read items: %w", err)
	}
	merged, added := window.Merge(existing, kept)

	transition(ctx, logger, core.CycleStateEvicting, "horizon", core.NewTimestamp(horizon).String())
	remaining, evicted := window.Evict(merged, horizon)

	// Every fresh item is at or after the watermark, so next is past it.
	latest, _ := window.MaxPublishDate(fresh)
	next := core.NewTimestamp(latest.Add(s.opts.Epsilon)).Time

	if err := s.store.WriteSnapshot(ctx, store.Snapshot{Items: remaining, Watermark: next, HasWatermark: true}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	report.Added = added
	report.Evicted = evicted
	report.StoreSize = len(remaining)
	report.Watermark = core.NewTimestamp(next)
	report.Mutated = true
	report.Status = core.CycleStatusCompleted
	transition(ctx, logger, core.CycleStateIdle, "added", added, "evicted", evicted, "store_size", len(remaining), "watermark", report.Watermark.String())
	return nil
}

func (s *Syncer) finish(report *core.CycleReport) {
	completedAt := s.opts.Now().UTC()
	report.CompletedAt = &completedAt
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordCycle(report)
	}
}

// transition logs a state change and marks it on the cycle span.
func transition(ctx context.Context, logger *slog.Logger, state core.CycleState, args ...any) {
	logger.Info("cycle state", append([]any{"state", string(state)}, args...)...)
	trace.SpanFromContext(ctx).AddEvent("cycle."+string(state))
}
