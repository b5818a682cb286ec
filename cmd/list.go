package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked products with their current price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		category, _ := cmd.Flags().GetString("category")
		return withStore(cmd.Context(), false, func(_ config.Config, store storage.Store) error {
			products, err := store.ListProducts(cmd.Context(), storage.ListOptions{Category: category})
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Println("No products tracked yet. Add one with 'pricescope track <url>'.")
				return nil
			}
			return report.WriteProductList(os.Stdout, products)
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("category", "c", "", "Only list products of this category")
}
