package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/legisync/cmd/legisync/commands"
	"github.com/teranos/legisync/jobs"
	"github.com/teranos/legisync/logger"
)

var rootCmd = &cobra.Command{
	Use:   "legisync",
	Short: "legisync - Câmara dos Deputados open data sync",
	Long: `legisync - Synchronize Câmara dos Deputados open data into a document store.

Each job fetches one entity type for a legislature from the open data API,
maps it and writes it in atomic batches to the store (or to local files,
or to an in-memory mock).

Examples:
  legisync deputados                  # Current legislature, to the store
  legisync deputados 57 --limite 5    # Legislature 57, first 5 deputies
  legisync orgaos --membros --mock    # Bodies and members, mock store
  legisync votacoes --pc --inicio 2024-03-01 --fim 2024-03-31
  legisync check                      # Is the upstream reachable?
  legisync runs                       # Recent runs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// job commands parse their own argv and initialize the logger themselves
		if cmd.DisableFlagParsing {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output JSON")

	for _, entry := range jobs.Registry() {
		rootCmd.AddCommand(commands.NewJobCmd(entry))
	}
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		logger.Debugw("Command failed", logger.FieldError, err.Error())
		logger.Cleanup()
		os.Exit(1)
	}
}
