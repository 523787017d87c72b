package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCronValidate(t *testing.T) {
	if err := NewCron("", "", nil).Validate(); err != nil {
		t.Fatalf("default schedule should be valid: %v", err)
	}
	if err := NewCron("not a schedule", "", nil).Validate(); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
	if err := NewCron("@every 1m", "Mars/Olympus", nil).Validate(); err == nil {
		t.Fatalf("expected invalid timezone error")
	}
}

func TestCronEmitsEventsAndClosesOnCancel(t *testing.T) {
	c := NewCron("@every 1s", "Asia/Jerusalem", []string{"tesla"})
	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case event := <-events:
		if event.Source != "cron" || len(event.Tags) != 1 || event.Tags[0] != "tesla" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("cron did not fire")
	}

	cancel()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("events channel not closed after cancel")
		}
	}
}

func TestTagFileFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.txt")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	watcher := NewTagFile(path, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := watcher.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected event for unrelated file: %+v", event)
	case <-time.After(150 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("a, b"), 0o644); err != nil {
		t.Fatalf("write tags: %v", err)
	}
	select {
	case event := <-events:
		if event.Source != "tagfile" || event.Tags != nil {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no event after tag file write")
	}

	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	for range events {
		// drain until closed
	}
}

func TestTagFileRequiresPath(t *testing.T) {
	if _, err := NewTagFile("", 0, nil).Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
