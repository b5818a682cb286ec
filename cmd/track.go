package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

var trackCmd = &cobra.Command{
	Use:   "track <url|ASIN>...",
	Short: "Start tracking products, or record a fresh price for tracked ones",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), true, func(cfg config.Config, store storage.Store) error {
			tc := trackerConfig(cfg, store)

			failed := 0
			for _, arg := range args {
				r, err := tracker.UpdateProduct(cmd.Context(), tc, arg)
				if err != nil {
					utils.Log.Errorf("Could not track %s: %v", arg, err)
					failed++
					continue
				}
				printResult(r)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d products could not be tracked", failed, len(args))
			}
			return nil
		})
	},
}

func printResult(r *tracker.Result) {
	p := r.Product
	price := "no price"
	if cur, ok := p.CurrentPrice(); ok {
		price = cur.Currency + " " + cur.Amount.StringFixed(2)
	}
	switch {
	case r.IsNew:
		fmt.Printf("+ %s  %s  %s\n", p.ASIN, utils.ShortText(p.Title, 60), price)
	case r.Change.HasChanged:
		fmt.Printf("~ %s  %s  %s (%+.2f%%)\n", p.ASIN, utils.ShortText(p.Title, 60), price, r.Change.Percentage)
	default:
		fmt.Printf("= %s  %s  %s\n", p.ASIN, utils.ShortText(p.Title, 60), price)
	}
}

func init() {
	rootCmd.AddCommand(trackCmd)
}
