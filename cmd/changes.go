package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent price changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(cmd.Context(), false, func(_ config.Config, store storage.Store) error {
			changes, err := store.ListRecentChanges(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Println("No price changes recorded yet.")
				return nil
			}
			return report.WriteChanges(os.Stdout, changes)
		})
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
}
