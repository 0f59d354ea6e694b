package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"listing-watch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "listingwatch %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}
