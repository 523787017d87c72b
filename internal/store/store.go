// Package store persists the item window and its watermark.
//
// Every backend treats the pair as one snapshot: WriteSnapshot replaces both
// atomically with respect to concurrent Snapshot reads, and a failed write
// leaves the previous snapshot in place.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/window"
)

// ErrUnsupported is returned for DSNs that name no known backend.
var ErrUnsupported = errors.New("unsupported store backend")

// Snapshot is the whole persisted state. Items are sorted ascending by
// publish date and unique by id.
type Snapshot struct {
	Items        []core.Item
	Watermark    time.Time
	HasWatermark bool
}

type Backend interface {
	// ReadWatermark returns the persisted watermark. ok is false when none
	// has been written yet.
	ReadWatermark(ctx context.Context) (watermark time.Time, ok bool, err error)
	ReadItems(ctx context.Context) ([]core.Item, error)
	// Snapshot reads items and watermark from the same committed write.
	Snapshot(ctx context.Context) (Snapshot, error)
	WriteSnapshot(ctx context.Context, snapshot Snapshot) error
	Close() error
}

// watermarkRecord is the persisted watermark artifact.
type watermarkRecord struct {
	LatestEntry core.Timestamp `json:"latest_entry"`
}

func encodeItems(items []core.Item) ([]byte, error) {
	if items == nil {
		items = []core.Item{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeItems(data []byte) ([]core.Item, error) {
	items := []core.Item{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	// Evict and After binary-search; the order on disk is not trusted.
	window.Sort(items)
	return items, nil
}

func encodeWatermark(watermark time.Time) ([]byte, error) {
	data, err := json.Marshal(watermarkRecord{LatestEntry: core.NewTimestamp(watermark)})
	if err != nil {
		return nil, fmt.Errorf("encode watermark: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeWatermark(data []byte) (time.Time, bool, error) {
	var record watermarkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return time.Time{}, false, fmt.Errorf("decode watermark: %w", err)
	}
	if record.LatestEntry.IsZero() {
		return time.Time{}, false, nil
	}
	return record.LatestEntry.Time, true, nil
}

func cloneItems(items []core.Item) []core.Item {
	out := make([]core.Item, len(items))
	copy(out, items)
	return out
}
