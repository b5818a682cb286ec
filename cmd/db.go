package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/pricescope/internal/config"
	"github.com/sw33tLie/pricescope/internal/utils"
	"github.com/sw33tLie/pricescope/pkg/report"
	"github.com/sw33tLie/pricescope/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the pricescope database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		if storage.IsPostgresURL(cfg.Database.URL) {
			psqlPath, err := exec.LookPath("psql")
			if err != nil {
				return fmt.Errorf("psql command not found in your PATH. Please install it to use the db shell")
			}
			return runInteractive(psqlPath, cfg.Database.URL)
		}

		dbPath, err := utils.GetAbsDBPath(cfg.Database.Path)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		return runInteractive(sqlitePath, dbPath)
	},
}

func runInteractive(name string, args ...string) error {
	c := exec.Command(name, args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the products and prices in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), false, func(_ config.Config, store storage.Store) error {
			stats, err := store.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No data in the database to generate stats.")
				return nil
			}
			return report.WriteStats(os.Stdout, stats)
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
}
