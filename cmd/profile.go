/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/inkpost/apiserver/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile [userId]",
	Short: "Show a profile, your own by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		if _, err := app.state.Reconcile(ctx, app.identity); err != nil {
			return err
		}
		userID := ""
		if len(args) == 1 {
			userID = args[0]
		} else if user := app.state.User(); user != nil {
			userID = user.ID
		}
		if userID == "" {
			return fmt.Errorf("not logged in, pass a userId")
		}

		page := profile.LoadProfile(ctx, app.identity, app.content, userID)
		rendering := profile.NewResolver(app.content, app.kv, app.verifier).Resolve(ctx, page.User)
		printf(cmd, "%s <%s>\n", page.User.Name, page.User.Email)
		if rendering.URL != "" {
			printf(cmd, "avatar: %s\n", rendering.URL)
		} else {
			printf(cmd, "avatar: [%s] %s\n", rendering.Initials, rendering.Color)
		}
		printf(cmd, "%d posts\n", len(page.Posts))
		for _, post := range page.Posts {
			printPostLine(cmd, post)
		}
		return nil
	}),
}

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Manage your profile picture",
}

var avatarSetCmd = &cobra.Command{
	Use:   "set <image>",
	Short: "Upload and verify a new profile picture",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		ctx := cmd.Context()
		user, err := app.requireLogin(ctx)
		if err != nil {
			return err
		}
		name, mimeType, data, err := readImage(args[0])
		if err != nil {
			return err
		}

		avatar := profile.NewAvatar(*user, app.content, app.identity, app.kv, app.verifier)
		if err := avatar.Select(name, mimeType, data); err != nil {
			return err
		}
		res, err := avatar.Upload(ctx)
		if err != nil {
			return fmt.Errorf("upload error: %w", err)
		}
		switch res.State {
		case profile.Confirmed:
			printf(cmd, "Profile picture updated: %s\n", res.URL)
			if latest := app.identity.GetCurrentUser(ctx); latest != nil {
				_ = app.state.Login(ctx, *latest)
			}
		case profile.RolledBack:
			printf(cmd, "The new picture could not be loaded and was discarded; showing initials %s\n", profile.Initials(user.Name))
		default:
			printf(cmd, "Profile picture state: %s\n", res.State)
		}
		return nil
	}),
}

func init() {
	avatarCmd.AddCommand(avatarSetCmd)
	rootCmd.AddCommand(profileCmd, avatarCmd)
}
