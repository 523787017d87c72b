package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/retry"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultBaseURL = "https://api.worldnewsapi.com"

// Options configures the World News API client.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Config
	// BreakerFailures is the number of consecutive failed calls that opens
	// the circuit. Defaults to 5.
	BreakerFailures uint32
	// BreakerCooldown is how long the circuit stays open. Defaults to 60s.
	BreakerCooldown time.Duration
}

// Client searches the World News API.
type Client struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	userAgent   string
	retry       retry.Config
	breaker     *gobreaker.CircuitBreaker
	maxBodySize int64
	logger      *slog.Logger
}

// statusError is a non-quota HTTP failure. Only 5xx responses are retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("worldnewsapi: status %d", e.code)
	}
	return fmt.Sprintf("worldnewsapi: status %d: %s", e.code, e.body)
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "newsfeed/0.1"
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 3
	}
	opts.Retry.ShouldRetry = isTransient
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "worldnewsapi",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// A spent quota or a cancelled cycle says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, newsapi.ErrQuotaExceeded) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		client:      &http.Client{Timeout: opts.Timeout},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      strings.TrimSpace(opts.APIKey),
		userAgent:   opts.UserAgent,
		retry:       opts.Retry,
		breaker:     breaker,
		maxBodySize: 10 << 20, // 10 MiB
		logger:      logger,
	}
}

func (c *Client) Search(ctx context.Context, req newsapi.SearchRequest) (newsapi.SearchResponse, error) {
	tracer := otel.Tracer("newsfeed/sources/newsapi")
	ctx, span := tracer.Start(ctx, "newsapi.search")
	span.SetAttributes(
		attribute.String("newsapi.text", req.Text),
		attribute.Int("newsapi.offset", req.Offset),
		attribute.Int("newsapi.number", req.Number),
		attribute.String("run.id", core.RunIDFromContext(ctx)),
	)
	defer span.End()

	if c.apiKey == "" {
		err := fmt.Errorf("worldnewsapi: missing api key (set WORLD_NEWS_API_KEY)")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return newsapi.SearchResponse{}, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var resp newsapi.SearchResponse
		err := retry.Do(ctx, c.retry, func() error {
			var err error
			resp, err = c.do(ctx, req)
			return err
		})
		return resp, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return newsapi.SearchResponse{}, err
	}

	resp := out.(newsapi.SearchResponse)
	span.SetAttributes(
		attribute.Int("newsapi.available", resp.Available),
		attribute.Int("newsapi.items", len(resp.Items)),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (c *Client) do(ctx context.Context, req newsapi.SearchRequest) (newsapi.SearchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search-news?"+encodeQuery(req).Encode(), nil)
	if err != nil {
		return newsapi.SearchResponse{}, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return newsapi.SearchResponse{}, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return newsapi.SearchResponse{}, err
	}
	if int64(len(body)) > c.maxBodySize {
		return newsapi.SearchResponse{}, fmt.Errorf("worldnewsapi: response too large")
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("upstream quota exceeded", "status", resp.StatusCode, "text", req.Text, "offset", req.Offset)
		return newsapi.SearchResponse{}, fmt.Errorf("worldnewsapi: status %d: %w", resp.StatusCode, newsapi.ErrQuotaExceeded)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return newsapi.SearchResponse{}, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	return decodeResponse(body)
}

// isTransient reports whether a failed page call is worth another attempt:
// transport failures and 5xx responses are, everything else is not.
func isTransient(err error) bool {
	if errors.Is(err, newsapi.ErrQuotaExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func encodeQuery(req newsapi.SearchRequest) url.Values {
	values := url.Values{}
	values.Set("text", req.Text)
	if req.Language != "" {
		values.Set("language", req.Language)
	}
	if req.SourceCountries != "" {
		values.Set("source-countries", req.SourceCountries)
	}
	if req.Sort != "" {
		values.Set("sort", req.Sort)
	}
	if req.SortDirection != "" {
		values.Set("sort-direction", req.SortDirection)
	}
	if req.Number > 0 {
		values.Set("number", strconv.Itoa(req.Number))
	}
	values.Set("offset", strconv.Itoa(req.Offset))
	if !req.Since.IsZero() {
		values.Set("earliest-publish-date", core.NewTimestamp(req.Since).String())
	}
	return values
}

type searchNewsResponse struct {
	Offset    int            `json:"offset"`
	Number    int            `json:"number"`
	Available int            `json:"available"`
	News      []searchResult `json:"news"`
}

type searchResult struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Text        string         `json:"text"`
	Summary     string         `json:"summary"`
	URL         string         `json:"url"`
	PublishDate core.Timestamp `json:"publish_date"`
}

func decodeResponse(body []byte) (newsapi.SearchResponse, error) {
	var payload searchNewsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return newsapi.SearchResponse{}, fmt.Errorf("worldnewsapi: decode response: %w", err)
	}
	items := make([]core.Item, 0, len(payload.News))
	for _, n := range payload.News {
		items = append(items, core.Item{
			ID:          n.ID,
			Title:       strings.TrimSpace(n.Title),
			URL:         strings.TrimSpace(n.URL),
			Text:        n.Text,
			Summary:     n.Summary,
			PublishDate: n.PublishDate,
		})
	}
	return newsapi.SearchResponse{Available: payload.Available, Items: items}, nil
}
