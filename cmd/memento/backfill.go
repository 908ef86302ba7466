package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisperfer/memento-mcp/pkg/config"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed every entity that has no embedding yet",
	Long: `Backfill scans the current graph and generates embeddings for
entities created before embeddings were enabled or whose embedding
generation failed. Failures are reported per entity and never abort
the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg)

		client, err := newClient(cfg, logger)
		if err != nil {
			return err
		}
		defer client.Close(cmd.Context())

		report, err := client.BackfillEmbeddings(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d entities: %d embedded, %d failed\n",
			report.Scanned, report.Embedded, report.Failed)
		for _, outcome := range report.Outcomes {
			if !outcome.OK {
				fmt.Printf("  %s: %s\n", outcome.Key, outcome.Error)
			}
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d entities failed to embed", report.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
