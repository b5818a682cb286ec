package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history <ASIN>",
	Short: "Show the recorded prices of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		asin := strings.ToUpper(strings.TrimSpace(args[0]))

		return withStore(cmd.Context(), false, func(_ config.Config, store storage.Store) error {
			p, err := store.GetProduct(cmd.Context(), asin)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("product %s is not tracked", asin)
			}
			if err != nil {
				return err
			}
			if days > 0 {
				p.History = p.History.Since(time.Now().AddDate(0, 0, -days))
			}
			return report.WriteHistory(os.Stdout, *p)
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("days", 0, "Only show the last N days (0 = everything)")
}
