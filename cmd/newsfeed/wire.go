package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bakkerme/newsfeed/internal/config"
	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/fetcher"
	"github.com/bakkerme/newsfeed/internal/filter"
	"github.com/bakkerme/newsfeed/internal/ingest"
	"github.com/bakkerme/newsfeed/internal/reader"
	"github.com/bakkerme/newsfeed/internal/retry"
	"github.com/bakkerme/newsfeed/internal/runner"
	"github.com/bakkerme/newsfeed/internal/sources/newsapi"
	newsapiimpl "github.com/bakkerme/newsfeed/internal/sources/newsapi/impl"
	newsapimock "github.com/bakkerme/newsfeed/internal/sources/newsapi/mock"
	"github.com/bakkerme/newsfeed/internal/sources/rss"
	rssimpl "github.com/bakkerme/newsfeed/internal/sources/rss/impl"
	"github.com/bakkerme/newsfeed/internal/store"
	"github.com/bakkerme/newsfeed/internal/tags"
	"github.com/bakkerme/newsfeed/internal/trigger"
)

func buildSearcher(doc config.Document, env config.EnvConfig, logger *slog.Logger) (newsapi.Searcher, error) {
	ing := doc.Ingest
	switch ing.Provider {
	case config.ProviderWorldNewsAPI:
		if strings.TrimSpace(env.APIKey) == "" {
			return nil, fmt.Errorf("WORLD_NEWS_API_KEY is required for the %s provider", ing.Provider)
		}
		return newsapiimpl.NewClient(newsapiimpl.Options{
			BaseURL:   ing.BaseURL,
			APIKey:    env.APIKey,
			Timeout:   ing.Timeout.Std(),
			UserAgent: ing.UserAgent,
			Retry: retry.Config{
				Attempts:  ing.Retry.Attempts,
				BaseDelay: ing.Retry.BaseDelay.Std(),
				MaxDelay:  ing.Retry.MaxDelay.Std(),
			},
			BreakerFailures: ing.Breaker.Failures,
			BreakerCooldown: ing.Breaker.Cooldown.Std(),
		}, logger), nil
	case config.ProviderRSS:
		return rss.NewFeedSearcher(rssimpl.NewFetcher(ing.Timeout.Std(), ing.UserAgent), rss.FeedSearcherOptions{
			Feeds:     ing.Feeds,
			UserAgent: ing.UserAgent,
			CacheTTL:  ing.FeedCacheTTL.Std(),
		}, logger), nil
	case config.ProviderFake:
		logger.Warn("using the fake upstream provider")
		return newsapimock.Fake{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", ing.Provider)
	}
}

func buildTagSource(doc config.Document) tags.Source {
	if doc.Tags.Source == config.TagSourceFile {
		return tags.File{Path: doc.Tags.File}
	}
	return tags.Static(doc.Tags.Static)
}

func buildSyncer(doc config.Document, env config.EnvConfig, backend store.Backend, recorder ingest.Recorder, logger *slog.Logger) (*ingest.Syncer, error) {
	searcher, err := buildSearcher(doc, env, logger)
	if err != nil {
		return nil, err
	}
	filters, err := filter.NewSet(doc.Filters, logger)
	if err != nil {
		return nil, err
	}
	ing := doc.Ingest
	f := fetcher.New(searcher, fetcher.Options{
		PageSize:        ing.PageSize,
		MaxPages:        ing.MaxPages,
		Language:        ing.Language,
		SourceCountries: strings.Join(ing.SourceCountries, ","),
		Sort:            ing.Sort,
		SortDirection:   ing.SortDirection,
	}, logger)
	return ingest.NewSyncer(backend, f, ingest.Options{
		MaxQueryChars: ing.MaxQueryChars,
		Retention:     ing.Retention.Std(),
		Epsilon:       ing.Epsilon.Std(),
		Filters:       filters,
		Recorder:      recorder,
	}, logger), nil
}

func buildRunner(doc config.Document, env config.EnvConfig, backend store.Backend, recorder ingest.Recorder, logger *slog.Logger) (*runner.Runner, error) {
	syncer, err := buildSyncer(doc, env, backend, recorder, logger)
	if err != nil {
		return nil, err
	}
	return runner.New(syncer, buildTagSource(doc), runner.Options{ReportPath: doc.Store.ReportPath}, logger), nil
}

func buildTriggers(doc config.Document, logger *slog.Logger) []core.Trigger {
	var triggers []core.Trigger
	if doc.Trigger.Cron != nil {
		triggers = append(triggers, trigger.NewCron(doc.Trigger.Cron.Schedule, doc.Trigger.Cron.Timezone, nil))
	}
	if doc.Tags.Source == config.TagSourceFile && doc.Tags.Watch {
		triggers = append(triggers, trigger.NewTagFile(doc.Tags.File, doc.Tags.WatchDebounce.Std(), logger))
	}
	return triggers
}

func buildReader(doc config.Document, backend store.Backend, logger *slog.Logger) *reader.Reader {
	return reader.New(backend, reader.Options{
		Lookback: doc.Read.Lookback.Std(),
		MaxItems: doc.Read.MaxItems,
	}, logger)
}

func openStore(ctx context.Context, doc config.Document, logger *slog.Logger) (store.Backend, error) {
	backend, err := store.Open(ctx, doc.Store.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return backend, nil
}
