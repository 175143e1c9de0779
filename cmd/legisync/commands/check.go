package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/legisync/display"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/upstream"
)

// CheckCmd checks the upstream API once
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the upstream API is reachable",
	Long: `Send a single lightweight request to the upstream API, with the
connectivity timeout and no retries. Exits 1 when it is unreachable.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	api, err := upstream.New(upstream.ConfigFrom(cfg), logger.ComponentLogger("upstream"))
	if err != nil {
		return err
	}

	ok := api.CheckConnectivity(cmd.Context())
	if display.ShouldOutputJSON(cmd) {
		if err := display.WriteJSON(cmd.OutOrStdout(), map[string]any{"url": cfg.Upstream.BaseURL, "reachable": ok}); err != nil {
			return err
		}
	} else if ok {
		pterm.Success.Printf("%s is reachable\n", cfg.Upstream.BaseURL)
	} else {
		pterm.Error.Printf("%s is unreachable\n", cfg.Upstream.BaseURL)
	}

	if !ok {
		return errors.Newf("upstream %s unreachable", cfg.Upstream.BaseURL)
	}
	return nil
}
