package cli

import (
	"github.com/spf13/cobra"
)

var onceURL string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scrape cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if onceURL != "" {
			a.Config.Scrape.BaseURL = onceURL
		}
		return a.RunOnce(cmd.Context())
	},
}

func init() {
	onceCmd.Flags().StringVar(&onceURL, "url", "", "Override the configured scrape target")
}
