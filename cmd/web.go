package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/server"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

// webCmd represents the web command
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the pricescope web interface and JSON API",
	Long:  `Start a web server to browse tracked products and unit price comparisons.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		addr, _ := cmd.Flags().GetString("bind")

		// The server runs until interrupted, so it takes the file lock per
		// write request instead of for its whole lifetime.
		return withStore(cmd.Context(), false, func(cfg config.Config, store storage.Store) error {
			srv := server.New(store, user, pass)
			srv.Tracker = trackerConfig(cfg, store)
			if !storage.IsPostgresURL(cfg.Database.URL) {
				lock, err := utils.NewDBLock(cfg.Database.Path)
				if err != nil {
					return err
				}
				srv.Lock = lock
			}
			return srv.Start(addr)
		})
	},
}

func init() {
	rootCmd.AddCommand(webCmd)

	webCmd.Flags().StringP("bind", "b", ":9999", "Address to bind the server to")
	webCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	webCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
}
