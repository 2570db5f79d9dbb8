package main

import (
	"fmt"
	"os"

	"github.com/helioscope-ai/helioscope/internal/cli"
	"github.com/helioscope-ai/helioscope/internal/cli/client"
	"github.com/helioscope-ai/helioscope/internal/cli/pipeline"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "helioscope",
		Short: "Helioscope CLI - retrieval over astronomy papers",
		Long: `Helioscope CLI manages the paper corpus and queries the retrieval API.

Corpus commands (ingest, get, list, delete, search, chat, stats) talk to
the API server. Pipeline commands (chunk, embed, index, sync, snapshot)
talk to the database and vector stores directly.

Environment variables:
  HELIOSCOPE_API_URL   API base URL (default: http://localhost:8080)
  DATABASE_URL         Postgres connection string (pipeline commands)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.StatsCmd())

	rootCmd.AddCommand(pipeline.ChunkCmd())
	rootCmd.AddCommand(pipeline.EmbedCmd())
	rootCmd.AddCommand(pipeline.IndexCmd())
	rootCmd.AddCommand(pipeline.SyncCmd())
	rootCmd.AddCommand(pipeline.SnapshotCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
