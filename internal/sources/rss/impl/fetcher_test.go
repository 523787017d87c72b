package impl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bakkerme/newsfeed/internal/sources/rss"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <item>
    <guid>urn:1</guid>
    <title>Tesla recalls cars</title>
    <link>https://example.com/1</link>
    <description>&lt;p&gt;Recall &lt;strong&gt;news&lt;/strong&gt;&lt;/p&gt;</description>
    <pubDate>Mon, 08 Jul 2024 12:00:00 GMT</pubDate>
  </item>
  <item>
    <guid>urn:2</guid>
    <title>No date</title>
    <link>https://example.com/2</link>
  </item>
</channel>
</rss>`

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "newsfeed-test" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	fixed := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	fetcher := NewFetcher(2*time.Second, "newsfeed-test")
	fetcher.now = func() time.Time { return fixed }

	items, err := fetcher.Fetch(context.Background(), srv.URL, rss.FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(items))
	}
	if items[0].GUID != "urn:1" || items[0].Title != "Tesla recalls cars" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if !items[0].PublishedAt.Equal(time.Date(2024, 7, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("PublishedAt = %v", items[0].PublishedAt)
	}
	if !items[1].PublishedAt.Equal(fixed) {
		t.Fatalf("undated item should use fetch time, got %v", items[1].PublishedAt)
	}

	limited, err := fetcher.Fetch(context.Background(), srv.URL, rss.FetchOptions{MaxEntries: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited fetch = %d items, err %v", len(limited), err)
	}
}
