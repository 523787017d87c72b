// Package window holds the pure operations over the stored item window.
// Every function expects and returns slices sorted ascending by publish
// date with ties broken by id.
package window

import (
	"sort"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

// Less orders items by publish date, then id.
func Less(a, b core.Item) bool {
	if !a.PublishDate.Equal(b.PublishDate.Time) {
		return a.PublishDate.Before(b.PublishDate.Time)
	}
	return a.ID < b.ID
}

// Sort orders items in place by publish date, then id.
func Sort(items []core.Item) {
	sort.SliceStable(items, func(i, j int) bool { return Less(items[i], items[j]) })
}

// Merge combines the stored window with freshly fetched items. Items are
// unique by id; a fetched item replaces a stored one, and later fetched
// copies replace earlier ones. added counts ids not present before.
func Merge(existing, fetched []core.Item) (merged []core.Item, added int) {
	byID := make(map[int64]core.Item, len(existing)+len(fetched))
	for _, item := range existing {
		byID[item.ID] = item
	}
	for _, item := range fetched {
		if _, ok := byID[item.ID]; !ok {
			added++
		}
		byID[item.ID] = item
	}
	merged = make([]core.Item, 0, len(byID))
	for _, item := range byID {
		merged = append(merged, item)
	}
	Sort(merged)
	return merged, added
}

// Evict drops items published before horizon. Items published exactly at the
// horizon are kept.
func Evict(items []core.Item, horizon time.Time) (kept []core.Item, evicted int) {
	idx := sort.Search(len(items), func(i int) bool {
		return !items[i].PublishDate.Before(horizon)
	})
	kept = make([]core.Item, len(items)-idx)
	copy(kept, items[idx:])
	return kept, idx
}

// After returns the items published strictly after watermark. When the tail
// is longer than limit only the newest limit items are returned; limit <= 0
// means no limit. The second result reports whether the tail was truncated.
func After(items []core.Item, watermark time.Time, limit int) ([]core.Item, bool) {
	idx := sort.Search(len(items), func(i int) bool {
		return items[i].PublishDate.After(watermark)
	})
	tail := items[idx:]
	truncated := false
	if limit > 0 && len(tail) > limit {
		tail = tail[len(tail)-limit:]
		truncated = true
	}
	out := make([]core.Item, len(tail))
	copy(out, tail)
	return out, truncated
}

// Since keeps the items published at or after since and counts the rest.
// Input order is preserved and does not need to be sorted.
func Since(items []core.Item, since time.Time) (kept []core.Item, stale int) {
	kept = make([]core.Item, 0, len(items))
	for _, item := range items {
		if item.PublishDate.Before(since) {
			stale++
			continue
		}
		kept = append(kept, item)
	}
	return kept, stale
}

// MaxPublishDate returns the latest publish date among items. ok is false for
// an empty slice. Input order does not matter.
func MaxPublishDate(items []core.Item) (latest time.Time, ok bool) {
	for _, item := range items {
		if !ok || item.PublishDate.After(latest) {
			latest = item.PublishDate.Time
			ok = true
		}
	}
	return latest, ok
}
