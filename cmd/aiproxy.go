/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/aiproxy"
	"github.com/spf13/cobra"
)

var aiproxyCmd = &cobra.Command{
	Use:   "aiproxy",
	Short: "Starts the AI drafting proxy",
	Long: `Starts the AI drafting proxy in front of the configured model provider
(AI_PROVIDER=gemini|openai). Usage:

	inkpost aiproxy
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		setupServiceLogging(cfg)

		srv, err := aiproxy.New(cmd.Context(), cfg.AI)
		if err != nil {
			return fmt.Errorf("failed to start ai proxy: %w", err)
		}
		if err := serve(cmd.Context(), srv); err != nil {
			return fmt.Errorf("ai proxy error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aiproxyCmd)
}
