package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plancheck/internal/store"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres rule store schema",
	Long: `Migrate applies the embedded schema migrations to the database named by
store.database_url (or DATABASE_URL).`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		changed, err := store.MigrateUp(url)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(os.Stderr, "✓ Migrations applied\n")
		} else {
			fmt.Fprintf(os.Stderr, "Schema is up to date\n")
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations (drops every stored rule set)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		if err := store.MigrateDown(url); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Migrations rolled back\n")
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		version, dirty, err := store.MigrationVersion(url)
		if err != nil {
			return err
		}
		fmt.Printf("version %d", version)
		if dirty {
			fmt.Printf(" (dirty)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

func databaseURL() (string, error) {
	if cfg.Store.DatabaseURL == "" {
		return "", fmt.Errorf("no database configured (set store.database_url or DATABASE_URL)")
	}
	return cfg.Store.DatabaseURL, nil
}
