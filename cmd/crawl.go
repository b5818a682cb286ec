package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <category-or-search-url>",
	Short: "Track the first products listed on a category or search page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		max, _ := cmd.Flags().GetInt("max")
		return withStore(cmd.Context(), true, func(cfg config.Config, store storage.Store) error {
			results, err := tracker.TrackCategory(cmd.Context(), trackerConfig(cfg, store), args[0], max)
			for _, r := range results {
				printResult(r)
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No products found on that page.")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().Int("max", 10, "Maximum number of listings to track")
}
