package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/runner/report"
	"github.com/bakkerme/newsfeed/internal/tags"
)

// ErrBusy means a cycle is already waiting to run.
var ErrBusy = errors.New("a sync cycle is already queued")

// Cycle runs one sync cycle. *ingest.Syncer implements it.
type Cycle interface {
	Run(ctx context.Context, tags []string) (*core.CycleReport, error)
}

type Options struct {
	// ReportPath, when set, receives the last cycle report as YAML.
	ReportPath string
	Now        func() time.Time
}

// Runner serializes trigger events into cycles. One worker goroutine drains a
// queue that holds at most one pending event.
type Runner struct {
	cycle  Cycle
	tags   tags.Source
	opts   Options
	logger *slog.Logger

	queue chan core.TriggerEvent
	runMu sync.Mutex

	mu      sync.RWMutex
	last    *core.CycleReport
	running bool
	done    chan struct{}
}

func New(cycle Cycle, source tags.Source, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if source == nil {
		source = tags.Static(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runner{
		cycle:  cycle,
		tags:   source,
		opts:   opts,
		logger: logger,
		queue:  make(chan core.TriggerEvent, 1),
		done:   make(chan struct{}),
	}
	if opts.ReportPath != "" {
		if last, err := report.Load(opts.ReportPath); err != nil {
			logger.Warn("could not load previous cycle report", "path", opts.ReportPath, "error", err)
		} else {
			r.last = last
		}
	}
	return r
}

// Start launches the worker and forwards every trigger's events into the
// queue. The worker exits when ctx is done; Done is closed afterwards.
func (r *Runner) Start(ctx context.Context, triggers ...core.Trigger) error {
	for _, trigger := range triggers {
		if trigger == nil {
			continue
		}
		if err := trigger.Validate(); err != nil {
			return fmt.Errorf("trigger %s: %w", trigger.Name(), err)
		}
		events, err := trigger.Start(ctx)
		if err != nil {
			return fmt.Errorf("start trigger %s: %w", trigger.Name(), err)
		}
		go r.forward(ctx, trigger.Name(), events)
	}
	go r.work(ctx)
	return nil
}

// Done is closed once the worker started by Start has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Submit queues event without blocking. It returns false when an event is
// already queued.
func (r *Runner) Submit(event core.TriggerEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.opts.Now().UTC()
	}
	select {
	case r.queue <- event:
		return true
	default:
		return false
	}
}

// RunOnce runs one cycle synchronously. Calls never overlap.
func (r *Runner) RunOnce(ctx context.Context, event core.TriggerEvent) (*core.CycleReport, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.setRunning(true)
	defer r.setRunning(false)

	runID := uuid.NewString()
	ctx = core.WithRunID(ctx, runID)
	logger := r.logger.With("run_id", runID, "trigger", event.Source)

	tagList := event.Tags
	if tagList == nil {
		resolved, err := r.tags.Tags(ctx)
		if err != nil {
			logger.Error("resolve tags failed", "error", err)
			return nil, fmt.Errorf("resolve tags: %w", err)
		}
		tagList = resolved
	}
	logger.Info("cycle starting", "tags", len(tagList))

	result, err := r.cycle.Run(ctx, tagList)
	if result != nil {
		result.Trigger = event.Source
		r.record(logger, result)
	}
	if err != nil {
		return result, err
	}
	logger.Info("cycle finished", "status", result.Status, "added", result.Added, "store_size", result.StoreSize)
	return result, nil
}

// LastReport returns a copy of the most recent cycle report, or nil.
func (r *Runner) LastReport() *core.CycleReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	out := *r.last
	out.Errors = append([]string(nil), r.last.Errors...)
	return &out
}

// Busy reports whether a cycle is running or queued.
func (r *Runner) Busy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running || len(r.queue) > 0
}

func (r *Runner) work(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.queue:
			if _, err := r.RunOnce(ctx, event); err != nil {
				r.logger.Error("sync cycle failed", "trigger", event.Source, "error", err)
			}
		}
	}
}

func (r *Runner) forward(ctx context.Context, name string, events <-chan core.TriggerEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Source == "" {
				event.Source = name
			}
			if !r.Submit(event) {
				r.logger.Info("trigger event dropped, cycle already queued", "trigger", event.Source)
			}
		}
	}
}

func (r *Runner) record(logger *slog.Logger, result *core.CycleReport) {
	r.mu.Lock()
	copied := *result
	r.last = &copied
	r.mu.Unlock()
	if r.opts.ReportPath == "" {
		return
	}
	if err := report.Save(r.opts.ReportPath, result); err != nil {
		logger.Warn("could not save cycle report", "path", r.opts.ReportPath, "error", err)
	}
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()
}
