package cli

import (
	"github.com/spf13/cobra"
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Scrape once and sync straight to the ingest API, without a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunCI(cmd.Context())
	},
}
