package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/pkg/notify"
	"github.com/sw33tLie/pricescope/pkg/storage"
	"github.com/sw33tLie/pricescope/pkg/tracker"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Send a summary of all tracked products through the configured notifiers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), false, func(cfg config.Config, store storage.Store) error {
			tc := trackerConfig(cfg, store)
			if len(tc.Notifiers) == 0 {
				return errors.New("no notifiers configured, set email.* or slack.webhook_url in ~/.pricescope.yaml")
			}
			sent, err := tracker.Summarize(cmd.Context(), tc)
			if errors.Is(err, notify.ErrNothingToSend) {
				fmt.Println("No products tracked yet, nothing to send.")
				return nil
			}
			if len(sent) > 0 {
				fmt.Printf("Summary sent via %s.\n", strings.Join(sent, ", "))
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
