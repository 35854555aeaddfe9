/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/inkpost/apiserver/internal/client"
	"github.com/spf13/cobra"
)

var assistRaw bool

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Draft blog content with the AI assistant",
}

var assistGenerateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Draft a post body about a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		text, err := app.drafts.Generate(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", render(text))
		return nil
	}),
}

var assistAskCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask the assistant; without a message, start a chat",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		if len(args) > 0 {
			text, err := app.drafts.AskAI(ctx, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", render(text))
			return nil
		}

		var history []client.Turn
		scanner := bufio.NewScanner(cmd.InOrStdin())
		printf(cmd, "Ask about your blog. An empty line ends the chat.\n> ")
		for scanner.Scan() {
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				return nil
			}
			text, err := app.drafts.AskAI(ctx, message, history)
			if err != nil {
				printf(cmd, "Sorry, I couldn't process that. %v\n> ", err)
				continue
			}
			history = append(history,
				client.Turn{Role: "user", Text: message},
				client.Turn{Role: "model", Text: text},
			)
			printf(cmd, "%s\n> ", render(text))
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		return nil
	}),
}

func render(text string) string {
	if assistRaw {
		return text
	}
	return client.CleanMarkdown(text)
}

func init() {
	assistCmd.PersistentFlags().BoolVar(&assistRaw, "raw", false, "print the model output without markdown cleanup")
	assistCmd.AddCommand(assistGenerateCmd, assistAskCmd)
	rootCmd.AddCommand(assistCmd)
}
