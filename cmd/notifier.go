/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/internal/notifier"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consumes password recovery events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		setupServiceLogging(cfg)

		queue, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is required for the notifier")
		}
		defer queue.Close()

		err = notifier.New(log.Logger).Run(cmd.Context(), queue)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("notifier stopped: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifierCmd)
}
