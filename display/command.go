package display

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// JSONEnvVar forces JSON output for every command when set to a true value
const JSONEnvVar = "LEGISYNC_JSON"

// ShouldOutputJSON determines if a command should output JSON based on the
// --json flag, falling back to LEGISYNC_JSON
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd != nil {
		if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
			v, _ := cmd.Flags().GetBool("json")
			return v
		}
		if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
			return true
		}
	}
	return envJSON()
}

func envJSON() bool {
	v, err := strconv.ParseBool(os.Getenv(JSONEnvVar))
	return err == nil && v
}
