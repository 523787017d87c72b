// Package server exposes the Read API, sync submission, health, status and
// metrics over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/observability/metrics"
	"github.com/bakkerme/newsfeed/internal/reader"
	"github.com/bakkerme/newsfeed/internal/runner"
	"github.com/bakkerme/newsfeed/internal/store"
	"github.com/bakkerme/newsfeed/internal/tags"
)

const Version = "0.1.0"

type NewsReader interface {
	GetSince(ctx context.Context, raw string) (reader.Response, error)
}

type SyncQueue interface {
	Submit(event core.TriggerEvent) bool
	Busy() bool
	LastReport() *core.CycleReport
}

type Options struct {
	// CORSOrigins defaults to "*".
	CORSOrigins []string
	// AccessLog enables echo's request logger.
	AccessLog bool
}

type Server struct {
	reader  NewsReader
	queue   SyncQueue
	store   store.Backend
	metrics *metrics.Collector
	logger  *slog.Logger
	echo    *echo.Echo
}

func New(news NewsReader, queue SyncQueue, backend store.Backend, collector *metrics.Collector, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	server := &Server{
		reader:  news,
		queue:   queue,
		store:   backend,
		metrics: collector,
		logger:  logger,
		echo:    e,
	}
	server.setupRoutes(opts)
	return server
}

func (s *Server) setupRoutes(opts Options) {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType},
	}))
	s.echo.Use(s.recordRequest)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := s.echo.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/news", s.handleNews)
	api.POST("/sync", s.handleSync)
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) recordRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		err := next(c)
		status := c.Response().Status
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(c.Request().Method, route, status, time.Since(started))
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "newsfeed",
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	snap, err := s.store.Snapshot(c.Request().Context())
	if err != nil {
		s.logger.Error("status: read store failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "store unavailable")
	}
	storeStatus := map[string]interface{}{
		"items": len(snap.Items),
	}
	if snap.HasWatermark {
		storeStatus["watermark"] = core.NewTimestamp(snap.Watermark).String()
	}
	if n := len(snap.Items); n > 0 {
		storeStatus["oldest"] = snap.Items[0].PublishDate.String()
		storeStatus["newest"] = snap.Items[n-1].PublishDate.String()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "running",
		"version":    Version,
		"busy":       s.queue.Busy(),
		"store":      storeStatus,
		"last_cycle": s.queue.LastReport(),
	})
}

func (s *Server) handleNews(c echo.Context) error {
	resp, err := s.reader.GetSince(c.Request().Context(), c.QueryParam("since"))
	if err != nil {
		s.logger.Error("read failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "store unavailable")
	}
	s.metrics.RecordRead(resp.Truncated)
	return c.JSON(http.StatusOK, resp)
}

type syncRequest struct {
	Tags *string `json:"tags"`
}

func (s *Server) handleSync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	event := core.TriggerEvent{Source: "http", Timestamp: time.Now().UTC()}
	if req.Tags != nil {
		parsed, err := tags.Parse(*req.Tags)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		event.Tags = parsed
	}

	if !s.queue.Submit(event) {
		return echo.NewHTTPError(http.StatusConflict, runner.ErrBusy.Error())
	}
	s.logger.Info("sync accepted", "tags", tagSummary(event.Tags))
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status": "accepted",
	})
}

func tagSummary(list []string) string {
	if list == nil {
		return "<tag source>"
	}
	return strings.Join(list, ", ")
}
