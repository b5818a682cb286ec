package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/pricing"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank tracked products by unit price",
	Long: `Rank tracked products by what one base unit costs.

With --unit (g, ml, item, cm) products are ordered by unit price when all of
them are measured in that unit, otherwise by total price.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		category, _ := cmd.Flags().GetString("category")
		unit, _ := cmd.Flags().GetString("unit")
		limit, _ := cmd.Flags().GetInt("limit")
		asHTML, _ := cmd.Flags().GetBool("html")

		return withStore(cmd.Context(), false, func(_ config.Config, store storage.Store) error {
			products, err := store.ListProducts(cmd.Context(), storage.ListOptions{Category: category})
			if err != nil {
				return err
			}
			rows, byUnit := pricing.CompareWith(products, pricing.CompareOptions{TargetUnit: unit, Limit: limit})
			if len(rows) == 0 {
				fmt.Println("No products to compare.")
				return nil
			}
			if asHTML {
				out, err := report.ComparisonHTML(rows)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}
			if unit != "" && !byUnit {
				fmt.Fprintf(os.Stderr, "Not every product is priced per %s, ranking by total price.\n", unit)
			}
			return report.WriteComparisonTable(os.Stdout, rows)
		})
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringP("category", "c", "", "Only compare products of this category")
	compareCmd.Flags().StringP("unit", "u", "", "Base unit to rank by (g, ml, item, cm)")
	compareCmd.Flags().Int("limit", 0, "Show at most this many products (0 = all)")
	compareCmd.Flags().Bool("html", false, "Print an HTML table instead of text")
}
