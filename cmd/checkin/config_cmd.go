package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/checkin-core/internal/config"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
)

// Configuration command
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-user <name>",
		Short: "Set the name scans are recorded under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.SetUser(strings.Join(args, " ")); err != nil {
				return err
			}
			if err := cfg.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current user set to: %s (%s)\n", cfg.UserName, cfg.UserID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <student|assessor|admin>",
		Short: "Set the role used for scanning and administration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.SetRole(args[0]); err != nil {
				return err
			}
			if err := cfg.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Role set to: %s\n", cfg.Role)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-data-dir <path>",
		Short: "Set where scan records are stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.DataDir = args[0]
			if err := cfg.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Data directory set to: %s\n", cfg.DataDir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-db <badger|bolt|memory>",
		Short: "Set the storage backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbType, err := repository.ParseDatabaseType(args[0])
			if err != nil {
				return err
			}
			cfg.DatabaseType = string(dbType)
			if err := cfg.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database set to: %s (%s)\n", dbType, repository.GetDatabaseInfo()[dbType])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := config.Path()
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", path, data)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.DefaultConfig()
			if err := cfg.SaveConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults")
			return nil
		},
	})

	return cmd
}
