package runner

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/runner/report"
	"github.com/bakkerme/newsfeed/internal/tags"
)

type fakeCycle struct {
	mu      sync.Mutex
	calls   [][]string
	release chan struct{}
	started chan struct{}
	err     error
}

func (c *fakeCycle) Run(ctx context.Context, tagList []string) (*core.CycleReport, error) {
	c.mu.Lock()
	c.calls = append(c.calls, tagList)
	c.mu.Unlock()
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.release != nil {
		<-c.release
	}
	status := core.CycleStatusCompleted
	if c.err != nil {
		status = core.CycleStatusFailed
	}
	return &core.CycleReport{RunID: core.RunIDFromContext(ctx), Status: status, Fetched: len(tagList)}, c.err
}

func (c *fakeCycle) Calls() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.calls...)
}

func TestRunOnceResolvesTagsFromSource(t *testing.T) {
	cycle := &fakeCycle{}
	r := New(cycle, tags.Static{"tesla", "Biden"}, Options{}, nil)

	rep, err := r.RunOnce(context.Background(), core.TriggerEvent{Source: "cli"})
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if rep.Trigger != "cli" || rep.RunID == "" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if got := cycle.Calls(); len(got) != 1 || !reflect.DeepEqual(got[0], []string{"tesla", "Biden"}) {
		t.Fatalf("unexpected calls %v", got)
	}
	if last := r.LastReport(); last == nil || last.RunID != rep.RunID {
		t.Fatalf("last report not recorded")
	}
}

func TestRunOnceUsesEventTags(t *testing.T) {
	cycle := &fakeCycle{}
	r := New(cycle, tags.Static{"ignored"}, Options{}, nil)
	if _, err := r.RunOnce(context.Background(), core.TriggerEvent{Source: "http", Tags: []string{}}); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if got := cycle.Calls(); len(got[0]) != 0 {
		t.Fatalf("explicit empty tag list should be used as-is, got %v", got[0])
	}
}

func TestRunOnceTagSourceError(t *testing.T) {
	cycle := &fakeCycle{}
	r := New(cycle, tags.File{Path: filepath.Join(t.TempDir(), "missing")}, Options{}, nil)
	if _, err := r.RunOnce(context.Background(), core.TriggerEvent{Source: "cron"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(cycle.Calls()) != 0 {
		t.Fatalf("cycle should not run without tags")
	}
}

func TestRunOncePersistsReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_cycle.yaml")
	cycle := &fakeCycle{err: errors.New("disk full")}
	r := New(cycle, tags.Static{"a"}, Options{ReportPath: path}, nil)
	if _, err := r.RunOnce(context.Background(), core.TriggerEvent{Source: "cron"}); err == nil {
		t.Fatalf("expected cycle error")
	}
	saved, err := report.Load(path)
	if err != nil || saved == nil || saved.Status != core.CycleStatusFailed || saved.Trigger != "cron" {
		t.Fatalf("saved report = %+v, err %v", saved, err)
	}

	reloaded := New(&fakeCycle{}, nil, Options{ReportPath: path}, nil)
	if last := reloaded.LastReport(); last == nil || last.RunID != saved.RunID {
		t.Fatalf("previous report not loaded on start")
	}
}

func TestSubmitQueuesAtMostOneEvent(t *testing.T) {
	cycle := &fakeCycle{release: make(chan struct{}), started: make(chan struct{}, 4)}
	r := New(cycle, tags.Static{"a"}, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !r.Submit(core.TriggerEvent{Source: "http"}) {
		t.Fatalf("first submit rejected")
	}
	<-cycle.started // worker is now busy with the first event

	if !r.Submit(core.TriggerEvent{Source: "http"}) {
		t.Fatalf("second submit should be queued")
	}
	if r.Submit(core.TriggerEvent{Source: "http"}) {
		t.Fatalf("third submit should be rejected while one is queued")
	}
	if !r.Busy() {
		t.Fatalf("runner should report busy")
	}

	cycle.release <- struct{}{}
	<-cycle.started
	cycle.release <- struct{}{}

	deadline := time.After(2 * time.Second)
	for len(cycle.Calls()) != 2 || r.Busy() {
		select {
		case <-deadline:
			t.Fatalf("expected 2 cycles, got %d", len(cycle.Calls()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-r.Done()
}

type chanTrigger struct {
	events chan core.TriggerEvent
}

func (c *chanTrigger) Name() string    { return "test" }
func (c *chanTrigger) Validate() error { return nil }
func (c *chanTrigger) Start(context.Context) (<-chan core.TriggerEvent, error) {
	return c.events, nil
}
func (c *chanTrigger) Stop() error { return nil }

func TestStartForwardsTriggerEvents(t *testing.T) {
	cycle := &fakeCycle{started: make(chan struct{}, 1)}
	trigger := &chanTrigger{events: make(chan core.TriggerEvent, 1)}
	r := New(cycle, tags.Static{"a"}, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx, trigger); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	trigger.events <- core.TriggerEvent{Timestamp: time.Now()}
	select {
	case <-cycle.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("trigger event did not start a cycle")
	}
	deadline := time.After(2 * time.Second)
	for {
		if last := r.LastReport(); last != nil {
			if last.Trigger != "test" {
				t.Fatalf("trigger name = %q, want test", last.Trigger)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no report recorded")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
