/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inkpost",
	Short: "inkpost blogging backend, AI proxy and terminal client",
	Long: `inkpost runs the blogging content backend, the AI drafting proxy and the
recovery notifier, and doubles as a terminal client for all of them.

	inkpost server
	inkpost aiproxy
	inkpost login --email me@example.com
	inkpost feed
`,
	SilenceUsage: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setupServiceLogging configures logging for long running roles.
func setupServiceLogging(cfg config.Config) {
	logging.Setup(cfg.Log, os.Stderr)
}

// setupClientLogging keeps client commands quiet unless LOG_LEVEL asks
// otherwise.
func setupClientLogging() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logging.Setup(config.LogConfig{Level: level, Format: "console"}, os.Stderr)
}

const shutdownTimeout = 15 * time.Second

type runnable interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is cancelled, then drains it.
func serve(ctx context.Context, srv runnable) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errCh
}
