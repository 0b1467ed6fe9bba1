// Package cli wires the broker's cobra commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"telemetry-broker/internal/config"
	"telemetry-broker/internal/store"
)

const serviceName = "telemetry-broker"

// NewRootCmd builds the command tree. Every subcommand reads --config;
// the maintenance commands also accept --db to skip the config file.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "broker",
		Short:         "Local telemetry broker",
		Long:          "broker admits telemetry from data sources on the local network, queues it in SQLite and keeps the hub credential fresh.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "path to config.json")
	rootCmd.PersistentFlags().String("db", "", "database file (overrides db_path from the config)")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(SourcesCmd())
	rootCmd.AddCommand(SettingsCmd())
	rootCmd.AddCommand(RecordsCmd())
	return rootCmd
}

// openStore opens the database named by --db, or by db_path from the
// config file when --db is not set.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		dbPath = cfg.DBPath
	}

	st, err := store.Open(cmd.Context(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}
