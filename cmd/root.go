/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/kraman82351/Task-management/config"
	"github.com/kraman82351/Task-management/internal/server"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskmanager",
	Short: "Task management backend",
	Long: `Task management backend: a REST API for accounts and personal tasks,
plus the email worker and maintenance commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the process logger.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := server.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
