// Package cli implements the stagegateadm administrative CLI: database
// lifecycle, catalog inspection, and project maintenance. The serving
// surface lives in the stagegated daemon; nothing here is exposed to
// API clients.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Greg-CLD/stagegate/internal/config"
	"github.com/Greg-CLD/stagegate/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "stagegateadm",
	Short: "Administrative CLI for the stagegate database and catalog",
	Long: `stagegateadm is the administrative companion to stagegated. It handles
database lifecycle (migrate, status, check), success-factor catalog
inspection, and per-project maintenance (populate, drift).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides STAGEGATE_DB_PATH)")
}

// loadConfig loads the configuration with the --db flag applied on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath := cmd.Flag("db").Value.String(); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path not specified (use --db flag or set STAGEGATE_DB_PATH)")
	}
	return cfg, nil
}

// openDatabase opens the configured database without checking schema state.
// Lifecycle commands (migrate, check) use this directly.
func openDatabase(cmd *cobra.Command) (*db.DB, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, cfg, nil
}

// openMigratedDatabase opens the configured database and refuses to
// proceed when migrations are pending. Data commands use this so they
// never run against a half-built schema.
func openMigratedDatabase(cmd *cobra.Command) (*db.DB, *config.Config, error) {
	database, cfg, err := openDatabase(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RequiresMigrationError(); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, cfg, nil
}
