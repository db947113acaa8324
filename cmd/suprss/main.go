package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"suprss"
	"suprss/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "suprss",
		Short: "suprss - shared RSS aggregation server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newEngine() (*suprss.Engine, error) {
	return suprss.NewEngine(suprss.EngineConfig{
		DBPath:         cfg.Database.Path,
		FetchTimeout:   cfg.FetchTimeout(),
		SchedulerBatch: cfg.Scheduler.BatchSize,
		SchedulerDelay: cfg.Delay(),
	})
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one due-feed pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			engine.RunDuePass(context.Background())
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var ownerID int64
	cmd := &cobra.Command{
		Use:   "import <opml-file>",
		Short: "Import feeds from an OPML file for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read OPML file: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			result, err := engine.ImportOPML(context.Background(), ownerID, string(data))
			if err != nil {
				return fmt.Errorf("failed to import OPML: %w", err)
			}

			fmt.Printf("Imported %d feeds (%d failed)\n", result.Created, result.Failed)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&ownerID, "user", "u", 1, "owner user ID for imported feeds")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir := filepath.Dir(configPath); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
