package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/legisync/display"
	"github.com/teranos/legisync/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show legisync version information",
	Long:  `Display version, build time, commit hash, and platform information for the legisync binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if display.ShouldOutputJSON(cmd) {
			return display.WriteJSON(cmd.OutOrStdout(), info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.String())
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		return nil
	},
}
