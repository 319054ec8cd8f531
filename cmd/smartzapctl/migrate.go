package main

import (
	"fmt"

	"github.com/smartzap/backend/internal/db"
	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Migrations directory (default MIGRATIONS_DIR)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	dir := migrationsDir
	if dir == "" {
		dir = e.cfg.MigrationsDir
	}

	applied, err := db.RunMigrations(cmd.Context(), e.pool, dir, e.log)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	fmt.Println("Migrations completed successfully")
	return nil
}
