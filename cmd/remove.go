package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

var removeCmd = &cobra.Command{
	Use:   "remove <ASIN>...",
	Short: "Stop tracking products and drop their history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), true, func(_ config.Config, store storage.Store) error {
			for _, arg := range args {
				asin := strings.ToUpper(strings.TrimSpace(arg))
				err := store.RemoveProduct(cmd.Context(), asin)
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Printf("%s is not tracked\n", asin)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("Removed %s\n", asin)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
