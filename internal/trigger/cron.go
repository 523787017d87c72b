// Package trigger holds the event sources that start sync cycles.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bakkerme/newsfeed/internal/core"
)

// DefaultSchedule matches the two-minute refresh of the upstream poller.
const DefaultSchedule = "@every 2m"

type Cron struct {
	schedule string
	timezone string
	tags     []string

	mu     sync.Mutex
	cron   *cron.Cron
	events chan core.TriggerEvent
}

// NewCron builds a cron trigger. tags may be nil, in which case the runner
// resolves them from its tag source on every firing.
func NewCron(schedule, timezone string, tags []string) *Cron {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Cron{
		schedule: schedule,
		timezone: timezone,
		tags:     tags,
	}
}

func (c *Cron) Name() string {
	return "cron"
}

func (c *Cron) Validate() error {
	_, _, err := c.parse()
	return err
}

// parse resolves the schedule and the location it is evaluated in (UTC when
// no timezone is configured).
func (c *Cron) parse() (cron.Schedule, *time.Location, error) {
	if c.schedule == "" {
		return nil, nil, fmt.Errorf("cron schedule is required")
	}
	schedule, err := cron.ParseStandard(c.schedule)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}
	location := time.UTC
	if c.timezone != "" {
		if location, err = time.LoadLocation(c.timezone); err != nil {
			return nil, nil, fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return schedule, location, nil
}

// Start schedules the trigger. Firings that arrive while an event is still
// pending are dropped; the events channel closes once ctx is done.
func (c *Cron) Start(ctx context.Context) (<-chan core.TriggerEvent, error) {
	schedule, location, err := c.parse()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.events = make(chan core.TriggerEvent, 1)
	c.cron = cron.New(cron.WithLocation(location))
	c.cron.Schedule(schedule, cron.FuncJob(c.fire))
	c.cron.Start()
	events := c.events
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()
	return events, nil
}

func (c *Cron) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		return
	}
	select {
	case c.events <- core.TriggerEvent{Source: c.Name(), Timestamp: time.Now().UTC(), Tags: c.tags}:
	default:
	}
}

// Stop halts the schedule, waits for a running firing and closes the events
// channel. It is safe to call more than once.
func (c *Cron) Stop() error {
	c.mu.Lock()
	scheduler := c.cron
	c.cron = nil
	c.mu.Unlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events != nil {
		close(c.events)
		c.events = nil
	}
	return nil
}
