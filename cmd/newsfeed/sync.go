package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/tags"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var rawTags string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, env, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			event := core.TriggerEvent{Source: "cli", Timestamp: time.Now().UTC()}
			if cmd.Flags().Changed("tags") {
				parsed, err := tags.Parse(rawTags)
				if err != nil {
					return err
				}
				event.Tags = parsed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			backend, err := openStore(ctx, doc, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			run, err := buildRunner(doc, env, backend, nil, logger)
			if err != nil {
				return err
			}
			report, err := run.RunOnce(ctx, event)
			if report != nil {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
				if closeErr := enc.Close(); closeErr != nil {
					return closeErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&rawTags, "tags", "", "comma-separated tags; defaults to the configured tag source")
	return cmd
}
