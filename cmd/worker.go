/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kraman82351/Task-management/internal/mailer"
	"github.com/kraman82351/Task-management/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued emails",
	Long: `Consumes the email channel of the configured message queue and hands
each message to the configured email provider. Requires MQ_DRIVER to be
rabbitmq or pubsub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		switch strings.ToLower(cfg.MQ.Driver) {
		case "", "none", "memory":
			return errors.New("worker needs an external queue: set MQ_DRIVER to rabbitmq or pubsub")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer backend.Close()

		sender, err := mailer.NewSender(cfg.Email, logger)
		if err != nil {
			return err
		}

		return mailer.NewWorker(backend, cfg.MQ.EmailChannel, sender, nil, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
