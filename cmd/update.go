package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Scrape every tracked product and notify about price changes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), true, func(cfg config.Config, store storage.Store) error {
			tc := trackerConfig(cfg, store)
			if cmd.Flags().Changed("concurrency") {
				tc.Concurrency, _ = cmd.Flags().GetInt("concurrency")
			}
			tc.OnProductDone = printResult

			res, err := tracker.UpdateAll(cmd.Context(), tc)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				utils.Log.Error(e)
			}
			fmt.Printf("Updated %d products, %d failed.\n", len(res.Results), len(res.Errors))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().Int("concurrency", tracker.DefaultConcurrency, "Number of products scraped concurrently (default from tracker.concurrency)")
}
