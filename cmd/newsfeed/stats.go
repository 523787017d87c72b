package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bakkerme/newsfeed/internal/core"
	"github.com/bakkerme/newsfeed/internal/runner/report"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store size, watermark and the last cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			backend, err := openStore(cmd.Context(), doc, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			snap, err := backend.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store:      %s\n", doc.Store.DSN)
			fmt.Fprintf(out, "Items:      %d\n", len(snap.Items))
			if n := len(snap.Items); n > 0 {
				fmt.Fprintf(out, "Oldest:     %s\n", snap.Items[0].PublishDate)
				fmt.Fprintf(out, "Newest:     %s\n", snap.Items[n-1].PublishDate)
			}
			if snap.HasWatermark {
				fmt.Fprintf(out, "Watermark:  %s\n", core.NewTimestamp(snap.Watermark))
			} else {
				fmt.Fprintln(out, "Watermark:  none")
			}

			if doc.Store.ReportPath == "" {
				return nil
			}
			last, err := report.Load(doc.Store.ReportPath)
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Fprintln(out, "Last cycle: none")
				return nil
			}
			fmt.Fprintf(out, "Last cycle: %s %s (%s) added=%d evicted=%d\n",
				last.RunID, last.Status, last.StartedAt.UTC().Format(core.TimeLayout), last.Added, last.Evicted)
			return nil
		},
	}
}
