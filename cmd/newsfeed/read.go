package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newReadCmd(root *rootOptions) *cobra.Command {
	var since string
	var maxItems int
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print every stored item published after a watermark",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max") {
				doc.Read.MaxItems = maxItems
			}

			backend, err := openStore(cmd.Context(), doc, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			resp, err := buildReader(doc, backend, logger).GetSince(cmd.Context(), since)
			if err != nil {
				return err
			}
			if resp.Truncated {
				logger.Warn("response truncated to the newest items", "max_items", doc.Read.MaxItems)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", `watermark "YYYY-MM-DD HH:MM:SS"; defaults to the lookback window`)
	cmd.Flags().IntVar(&maxItems, "max", 0, "maximum items to return (0 means unlimited)")
	return cmd
}
