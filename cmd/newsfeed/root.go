package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bakkerme/newsfeed/internal/config"
	"github.com/bakkerme/newsfeed/internal/server"
)

type rootOptions struct {
	configPath string
	storeDSN   string
	provider   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "newsfeed",
		Short:         "Windowed, deduplicating news ingestion service",
		Long:          "newsfeed pulls tagged news from an upstream search API into a bounded, deduplicated store and serves incremental reads from it.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to newsfeed.yaml (default $NEWSFEED_CONFIG or ./newsfeed.yaml)")
	cmd.PersistentFlags().StringVar(&opts.storeDSN, "store", "", "store DSN, overrides the config file")
	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "upstream provider: worldnewsapi, rss or fake")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newReadCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsfeed %s\n", server.Version)
		},
	})
	return cmd
}

// load resolves the config document, applying env and then flag overrides.
func (o *rootOptions) load(stderr io.Writer) (config.Document, config.EnvConfig, *slog.Logger, error) {
	env := config.LoadEnv()
	if o.configPath != "" {
		env.ConfigPath = o.configPath
	}
	if o.storeDSN != "" {
		env.StoreDSN = o.storeDSN
	}
	if o.provider != "" {
		env.Provider = strings.ToLower(o.provider)
	}
	if o.logLevel != "" {
		env.LogLevel = strings.ToLower(o.logLevel)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(env.LogLevel)}))
	doc, err := config.Load(env.ConfigPath, env)
	if err != nil {
		return config.Document{}, env, logger, err
	}
	return doc, env, logger, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
