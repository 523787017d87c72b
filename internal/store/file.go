package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

const (
	NewsFileName      = "news.json"
	WatermarkFileName = "latest_update.json"

	// CurrentLink names the symlink that points at the live generation.
	CurrentLink = "current"

	generationPrefix = "gen-"
	readAttempts     = 8
)

// FileBackend keeps the window in two JSON files. Every write lands in a
// fresh generation directory and is committed by renaming the current
// symlink onto it, so a reader in any process that resolves the link once
// sees both files of one snapshot.
//
// A directory without a current link is read from the flat layout
// (<dir>/news.json and <dir>/latest_update.json) until the first write.
type FileBackend struct {
	dir string
	mu  sync.Mutex

	// rename performs the commit step.
	rename func(oldpath, newpath string) error
}

func NewFileBackend(dir string) (*FileBackend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileBackend{dir: dir, rename: os.Rename}, nil
}

func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	return snap.Watermark, snap.HasWatermark, nil
}

func (b *FileBackend) ReadItems(ctx context.Context) ([]core.Item, error) {
	snap, err := b.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Items, nil
}

// Snapshot resolves the current link once and reads both files from that
// generation. A generation pruned between resolving and reading is retried.
func (b *FileBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	_ = ctx
	var lastErr error
	for attempt := 0; attempt < readAttempts; attempt++ {
		gen, ok, err := b.resolve()
		if err != nil {
			return Snapshot{}, err
		}
		if !ok {
			return readSnapshot(b.dir, false)
		}
		snap, err := readSnapshot(gen, true)
		if err == nil {
			return snap, nil
		}
		if _, statErr := os.Stat(gen); !errors.Is(statErr, os.ErrNotExist) {
			return Snapshot{}, err
		}
		lastErr = err
	}
	return Snapshot{}, fmt.Errorf("current generation kept moving: %w", lastErr)
}

func (b *FileBackend) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	_ = ctx
	news, err := encodeItems(snapshot.Items)
	if err != nil {
		return err
	}
	watermark, err := encodeWatermark(snapshot.Watermark)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.currentGeneration()
	if err != nil {
		return err
	}
	next := current + 1
	name := generationName(next)
	gen := filepath.Join(b.dir, name)
	if err := os.RemoveAll(gen); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	if err := os.Mkdir(gen, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := writeSynced(filepath.Join(gen, NewsFileName), news); err != nil {
		_ = os.RemoveAll(gen)
		return err
	}
	if err := writeSynced(filepath.Join(gen, WatermarkFileName), watermark); err != nil {
		_ = os.RemoveAll(gen)
		return err
	}
	syncDir(gen)

	link := filepath.Join(b.dir, CurrentLink)
	staged := link + ".tmp"
	_ = os.Remove(staged)
	if err := os.Symlink(name, staged); err != nil {
		_ = os.RemoveAll(gen)
		return fmt.Errorf("stage %s: %w", CurrentLink, err)
	}
	if err := b.rename(staged, link); err != nil {
		_ = os.Remove(staged)
		_ = os.RemoveAll(gen)
		return fmt.Errorf("commit %s: %w", name, err)
	}
	syncDir(b.dir)

	b.prune(next)
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}

// resolve returns the directory the current link points at. ok is false
// when no generation has been committed yet.
func (b *FileBackend) resolve() (string, bool, error) {
	target, err := os.Readlink(filepath.Join(b.dir, CurrentLink))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve %s: %w", CurrentLink, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(b.dir, target)
	}
	return target, true, nil
}

func (b *FileBackend) currentGeneration() (int, error) {
	gen, ok, err := b.resolve()
	if err != nil || !ok {
		return 0, err
	}
	n, ok := parseGeneration(filepath.Base(gen))
	if !ok {
		return 0, fmt.Errorf("%s points at %q, not a generation", CurrentLink, filepath.Base(gen))
	}
	return n, nil
}

// prune removes generations other than live and the one before it, along
// with any flat-layout files left from before the first commit.
func (b *FileBackend) prune(live int) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		n, ok := parseGeneration(entry.Name())
		if !ok || n == live || n == live-1 {
			continue
		}
		_ = os.RemoveAll(filepath.Join(b.dir, entry.Name()))
	}
	_ = os.Remove(filepath.Join(b.dir, NewsFileName))
	_ = os.Remove(filepath.Join(b.dir, WatermarkFileName))
}

func generationName(n int) string {
	return generationPrefix + strconv.Itoa(n)
}

func parseGeneration(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, generationPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// readSnapshot reads both files from dir. A missing file reads as empty
// unless strict is set; a committed generation always holds both.
func readSnapshot(dir string, strict bool) (Snapshot, error) {
	items := []core.Item{}
	data, err := os.ReadFile(filepath.Join(dir, NewsFileName))
	switch {
	case err == nil:
		if items, err = decodeItems(data); err != nil {
			return Snapshot{}, err
		}
	case strict || !errors.Is(err, os.ErrNotExist):
		return Snapshot{}, fmt.Errorf("read %s: %w", NewsFileName, err)
	}

	var (
		watermark time.Time
		ok        bool
	)
	data, err = os.ReadFile(filepath.Join(dir, WatermarkFileName))
	switch {
	case err == nil:
		if watermark, ok, err = decodeWatermark(data); err != nil {
			return Snapshot{}, err
		}
	case strict || !errors.Is(err, os.ErrNotExist):
		return Snapshot{}, fmt.Errorf("read %s: %w", WatermarkFileName, err)
	}
	return Snapshot{Items: items, Watermark: watermark, HasWatermark: ok}, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// syncDir flushes directory entries. Errors are ignored; some platforms
// cannot fsync a directory.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
