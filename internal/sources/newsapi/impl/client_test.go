package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bakkerme/newsfeed/internal/retry"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func newTestClient(transport roundTripFunc) *Client {
	client := NewClient(Options{
		BaseURL: "http://news.test/",
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
		Retry:   retry.Config{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Jitter: time.Millisecond},
	}, nil)
	client.client = &http.Client{Transport: transport}
	return client
}

func TestClient_Search(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 7, 8, 12, 0, 1, 0, time.UTC)
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/search-news" {
			return nil, fmt.Errorf("path = %s, want /search-news", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			return nil, fmt.Errorf("x-api-key = %q", got)
		}
		q := r.URL.Query()
		want := map[string]string{
			"text":                  "tesla OR Biden",
			"language":              "en",
			"source-countries":      "US, IL",
			"sort":                  "publish-time",
			"sort-direction":        "DESC",
			"number":                "100",
			"offset":                "200",
			"earliest-publish-date": "2024-07-08 12:00:01",
		}
		for key, value := range want {
			if got := q.Get(key); got != value {
				return nil, fmt.Errorf("%s = %q, want %q", key, got, value)
			}
		}
		return jsonResponse(r, http.StatusOK, `{
			"offset": 200, "number": 100, "available": 250,
			"news": [
				{"id": 248985898, "title": " Linen pants ", "text": "Paperbag", "summary": "sale",
				 "url": "https://people.com/a", "image": "x.jpg", "publish_date": "2024-07-08 12:00:00"}
			]
		}`), nil
	})

	resp, err := client.Search(context.Background(), newsapi.SearchRequest{
		Text:            "tesla OR Biden",
		Since:           since,
		Offset:          200,
		Number:          100,
		Language:        "en",
		SourceCountries: "US, IL",
		Sort:            "publish-time",
		SortDirection:   "DESC",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Available != 250 || len(resp.Items) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	item := resp.Items[0]
	if item.ID != 248985898 || item.Title != "Linen pants" || item.Summary != "sale" {
		t.Fatalf("unexpected item %+v", item)
	}
	if got := item.PublishDate.String(); got != "2024-07-08 12:00:00" {
		t.Fatalf("publish_date = %q", got)
	}
}

func TestClient_Search_QuotaIsNotRetried(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusPaymentRequired, http.StatusTooManyRequests} {
		var calls int32
		client := newTestClient(func(r *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return jsonResponse(r, status, `{"message":"limit"}`), nil
		})
		_, err := client.Search(context.Background(), newsapi.SearchRequest{Text: "a"})
		if !errors.Is(err, newsapi.ErrQuotaExceeded) {
			t.Fatalf("status %d: expected ErrQuotaExceeded, got %v", status, err)
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("status %d: expected 1 call, got %d", status, got)
		}
	}
}

func TestClient_Search_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return jsonResponse(r, http.StatusBadGateway, "bad gateway"), nil
		}
		return jsonResponse(r, http.StatusOK, `{"available": 0, "news": []}`), nil
	})
	resp, err := client.Search(context.Background(), newsapi.SearchRequest{Text: "a"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Available != 0 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("unexpected result available=%d calls=%d", resp.Available, calls)
	}
}

func TestClient_Search_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(r, http.StatusBadRequest, `{"message":"bad text"}`), nil
	})
	_, err := client.Search(context.Background(), newsapi.SearchRequest{Text: "a"})
	if err == nil || errors.Is(err, newsapi.ErrQuotaExceeded) {
		t.Fatalf("expected non-quota error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestClient_Search_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	var calls int32
	client := NewClient(Options{
		BaseURL:         "http://news.test",
		APIKey:          "k",
		Retry:           retry.Config{Attempts: 1},
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
	}, nil)
	client.client = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})}

	for i := 0; i < 4; i++ {
		if _, err := client.Search(context.Background(), newsapi.SearchRequest{Text: "a"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected breaker to stop calls after 2 failures, got %d transport calls", got)
	}
}

func TestClient_Search_MissingAPIKey(t *testing.T) {
	t.Parallel()

	client := NewClient(Options{BaseURL: "http://localhost"}, nil)
	if _, err := client.Search(context.Background(), newsapi.SearchRequest{Text: "a"}); err == nil {
		t.Fatalf("expected error")
	}
}
