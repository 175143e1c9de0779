package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/legisync/db"
	"github.com/teranos/legisync/display"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/runlog"
)

// RunsCmd lists the run ledger
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent job runs",
	Long: `List the most recent job runs recorded in the local SQLite ledger
(database.path), newest first.`,
	RunE: runRuns,
}

var runsLimit int

func init() {
	RunsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	sqlDB, err := db.OpenWithMigrations(cfg.Database.Path, logger.ComponentLogger("db"))
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	runs, err := runlog.NewStore(sqlDB, logger.ComponentLogger("runlog")).List(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		if runs == nil {
			runs = []runlog.Run{}
		}
		return display.WriteJSON(cmd.OutOrStdout(), runs)
	}
	return display.RenderRuns(cmd.OutOrStdout(), runs)
}
