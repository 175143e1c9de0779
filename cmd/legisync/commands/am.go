package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/display"
	"github.com/teranos/legisync/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Show legisync configuration",
	Long: `Display legisync configuration.

Configuration sources (in order of precedence):
1. Environment variables (LEGISYNC_* prefix)
2. Project config (./legisync.toml, searched upwards)
3. User config (~/.legisync/legisync.toml)
4. System config (/etc/legisync/legisync.toml)
5. Default values

Examples:
  legisync am show           # Show current configuration
  legisync am show --json    # Show configuration in JSON format
  legisync am where          # Show which config files exist`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the merged configuration from all sources, secrets redacted",
	RunE:  runAmShow,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runAmWhere,
}

func init() {
	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	if display.ShouldOutputJSON(cmd) {
		shown := *cfg
		if shown.Store.Token != "" {
			shown.Store.Token = "********"
		}
		return display.WriteJSON(cmd.OutOrStdout(), shown)
	}

	data, err := cfg.Render()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for i, path := range am.ConfigPaths() {
		status := "missing"
		if _, err := os.Stat(path); err == nil {
			status = "found"
		}
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, path, status)
	}
	return nil
}
