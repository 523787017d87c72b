package window

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func item(id int64, offset time.Duration) core.Item {
	return core.Item{ID: id, Title: "t", PublishDate: core.NewTimestamp(base.Add(offset))}
}

func ids(items []core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func assertSortedUnique(t *testing.T, items []core.Item) {
	t.Helper()
	seen := map[int64]bool{}
	for i, it := range items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %d", it.ID)
		}
		seen[it.ID] = true
		if i > 0 && Less(it, items[i-1]) {
			t.Fatalf("items not sorted at %d: %v after %v", i, it, items[i-1])
		}
	}
}

func TestMergeOverlappingBatches(t *testing.T) {
	first, _ := Merge(nil, []core.Item{item(1, 0), item(2, time.Minute), item(3, 2*time.Minute)})
	second := item(3, 2*time.Minute)
	second.Title = "updated"
	merged, added := Merge(first, []core.Item{second, item(4, 3*time.Minute)})

	if got := ids(merged); len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("unexpected merged ids %v", got)
	}
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	if merged[2].Title != "updated" {
		t.Fatalf("expected fetched copy to win, got %q", merged[2].Title)
	}
}

func TestMergeLaterFetchedCopyWins(t *testing.T) {
	a := item(7, 0)
	a.Title = "first"
	b := item(7, 0)
	b.Title = "second"
	merged, added := Merge(nil, []core.Item{a, b})
	if len(merged) != 1 || merged[0].Title != "second" || added != 1 {
		t.Fatalf("unexpected merge result %+v added=%d", merged, added)
	}
}

func TestMergeRandomBatchesStaySortedAndUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var window []core.Item
	for round := 0; round < 20; round++ {
		batch := make([]core.Item, 0, 30)
		for i := 0; i < 30; i++ {
			id := rng.Int63n(60)
			batch = append(batch, item(id, time.Duration(id)*time.Minute))
		}
		window, _ = Merge(window, batch)
		assertSortedUnique(t, window)
	}
}

func TestMergeBreaksTiesByID(t *testing.T) {
	merged, _ := Merge(nil, []core.Item{item(9, 0), item(3, 0), item(5, 0)})
	got := ids(merged)
	if got[0] != 3 || got[1] != 5 || got[2] != 9 {
		t.Fatalf("expected tie order by id, got %v", got)
	}
}

func TestEvict(t *testing.T) {
	items := []core.Item{item(1, -3*time.Hour), item(2, -time.Hour), item(3, 0), item(4, time.Hour)}
	kept, evicted := Evict(items, base)
	if evicted != 2 {
		t.Fatalf("expected 2 evicted, got %d", evicted)
	}
	if got := ids(kept); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("unexpected kept ids %v", got)
	}
	for _, it := range kept {
		if it.PublishDate.Before(base) {
			t.Fatalf("item %d older than horizon survived", it.ID)
		}
	}
}

func TestAfterIsStrict(t *testing.T) {
	items := []core.Item{item(1, 0), item(2, time.Second), item(3, 2*time.Second)}
	got, truncated := After(items, base.Add(time.Second), 0)
	if truncated || len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("After returned %v truncated=%v", ids(got), truncated)
	}
}

func TestAfterKeepsNewestWhenTruncating(t *testing.T) {
	var items []core.Item
	for i := int64(0); i < 10; i++ {
		items = append(items, item(i, time.Duration(i)*time.Minute))
	}
	got, truncated := After(items, base.Add(-time.Hour), 3)
	if !truncated {
		t.Fatalf("expected truncation")
	}
	if g := ids(got); len(g) != 3 || g[0] != 7 || g[2] != 9 {
		t.Fatalf("expected newest three, got %v", g)
	}
}

func TestAfterEmpty(t *testing.T) {
	got, truncated := After(nil, base, 700)
	if got == nil || len(got) != 0 || truncated {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestMaxPublishDate(t *testing.T) {
	if _, ok := MaxPublishDate(nil); ok {
		t.Fatalf("expected ok=false for empty input")
	}
	got, ok := MaxPublishDate([]core.Item{item(1, time.Hour), item(2, 3*time.Hour), item(3, 0)})
	if !ok || !got.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("MaxPublishDate = %v, %v", got, ok)
	}
}

func TestSinceKeepsBoundaryAndOrder(t *testing.T) {
	got, stale := Since([]core.Item{item(5, time.Hour), item(1, -time.Second), item(2, 0), item(3, -time.Hour)}, base)
	if stale != 2 {
		t.Fatalf("stale = %d, want 2", stale)
	}
	if g := ids(got); len(g) != 2 || g[0] != 5 || g[1] != 2 {
		t.Fatalf("Since() ids = %v, want [5 2]", g)
	}
}
