package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bakkerme/newsfeed/internal/core"
)

const defaultDebounce = 500 * time.Millisecond

// TagFile fires when the tag file is written, so edited tags are fetched
// without waiting for the next scheduled cycle. The parent directory is
// watched because editors often replace the file by rename.
type TagFile struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewTagFile(path string, debounce time.Duration, logger *slog.Logger) *TagFile {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &TagFile{path: path, debounce: debounce, logger: logger}
}

func (t *TagFile) Name() string {
	return "tagfile"
}

func (t *TagFile) Validate() error {
	if t.path == "" {
		return fmt.Errorf("tag file path is required")
	}
	return nil
}

func (t *TagFile) Start(ctx context.Context) (<-chan core.TriggerEvent, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	t.mu.Lock()
	t.watcher = watcher
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	stopCh, doneCh := t.stopCh, t.doneCh
	t.mu.Unlock()

	events := make(chan core.TriggerEvent, 1)
	go t.loop(ctx, watcher, events, stopCh, doneCh)
	return events, nil
}

func (t *TagFile) Stop() error {
	t.mu.Lock()
	stopCh, doneCh := t.stopCh, t.doneCh
	t.stopCh = nil
	t.mu.Unlock()
	if stopCh == nil {
		return nil
	}
	close(stopCh)
	<-doneCh
	return nil
}

func (t *TagFile) loop(ctx context.Context, watcher *fsnotify.Watcher, events chan<- core.TriggerEvent, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer close(events)
	defer watcher.Close()

	target := filepath.Clean(t.path)
	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			t.logger.Info("tag file changed", "file", event.Name, "operation", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(t.debounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			select {
			case events <- core.TriggerEvent{Source: t.Name(), Timestamp: time.Now().UTC()}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.logger.Error("file watcher error", "error", err)
		}
	}
}
