package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisperfer/memento-mcp/pkg/config"
)

var ontologyCmd = &cobra.Command{
	Use:   "ontology",
	Short: "Print the aggregate schema of the knowledge graph",
	Long: `Ontology reads the current graph and prints which entity types
exist, in what quantity, and which relation types connect which entity
types.`,
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

		text, err := client.OntologyText(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ontologyCmd)
}
