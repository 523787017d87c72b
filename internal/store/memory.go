package store

import (
	"context"
	"sync"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

type MemoryBackend struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snapshot: Snapshot{Items: []core.Item{}}}
}

func (b *MemoryBackend) ReadWatermark(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.Watermark, b.snapshot.HasWatermark, nil
}

func (b *MemoryBackend) ReadItems(ctx context.Context) ([]core.Item, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneItems(b.snapshot.Items), nil
}

func (b *MemoryBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.snapshot
	out.Items = cloneItems(b.snapshot.Items)
	return out, nil
}

func (b *MemoryBackend) WriteSnapshot(ctx context.Context, snapshot Snapshot) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = Snapshot{
		Items:        cloneItems(snapshot.Items),
		Watermark:    core.NewTimestamp(snapshot.Watermark).Time,
		HasWatermark: true,
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
