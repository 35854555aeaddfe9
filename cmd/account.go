/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var accountFlags struct {
	email    string
	password string
	name     string
	redirect string
	success  string
	failure  string
	secret   string
	userID   string
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and log in",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		user, err := app.identity.CreateAccount(cmd.Context(), accountFlags.email, accountFlags.password, accountFlags.name)
		if err != nil {
			return err
		}
		if err := app.state.Login(cmd.Context(), *user); err != nil {
			return err
		}
		printf(cmd, "Welcome, %s!\n", user.Name)
		return nil
	}),
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		res := app.identity.Login(cmd.Context(), accountFlags.email, accountFlags.password)
		if !res.Success {
			return errors.New(res.Error)
		}
		if err := app.state.Login(cmd.Context(), *res.UserData); err != nil {
			return err
		}
		printf(cmd, "Logged in as %s <%s>\n", res.UserData.Name, res.UserData.Email)
		return nil
	}),
}

var loginGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Print the URL that starts a Google login",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		printf(cmd, "Open in a browser:\n%s\n", app.identity.GoogleLoginURL(accountFlags.success, accountFlags.failure))
		printf(cmd, "Then run: inkpost login complete --secret <secret from the success URL>\n")
		return nil
	}),
}

var loginCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Adopt the session secret returned by an OAuth login",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		res := app.identity.CompleteOAuthLogin(cmd.Context(), accountFlags.secret)
		if !res.Success {
			return errors.New(res.Error)
		}
		if err := app.state.Login(cmd.Context(), *res.UserData); err != nil {
			return err
		}
		printf(cmd, "Logged in as %s <%s>\n", res.UserData.Name, res.UserData.Email)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete every session of the current user",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		if !app.identity.Logout(cmd.Context()) {
			return errors.New("logout failed")
		}
		if err := app.state.Logout(cmd.Context()); err != nil {
			return err
		}
		printf(cmd, "Logged out\n")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user of the live session",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		outcome, err := app.state.Reconcile(cmd.Context(), app.identity)
		if err != nil {
			return err
		}
		user := app.state.User()
		if user == nil {
			printf(cmd, "Not logged in\n")
			return nil
		}
		printf(cmd, "%s <%s> id=%s (%s)\n", user.Name, user.Email, user.ID, outcome)
		return nil
	}),
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Recover a forgotten password",
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot",
	Short: "Send a password reset link",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		if err := app.identity.ForgotPassword(cmd.Context(), accountFlags.email, accountFlags.redirect); err != nil {
			return err
		}
		printf(cmd, "Password reset email sent. Please check your inbox.\n")
		return nil
	}),
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set a new password from a reset link",
	RunE: withClient(func(cmd *cobra.Command, args []string, app *clientApp) error {
		err := app.identity.UpdatePassword(cmd.Context(), accountFlags.userID, accountFlags.secret, accountFlags.password)
		if err != nil {
			return err
		}
		printf(cmd, "Password updated successfully!\n")
		return nil
	}),
}

func init() {
	signupCmd.Flags().StringVar(&accountFlags.email, "email", "", "account email")
	signupCmd.Flags().StringVar(&accountFlags.password, "password", "", "account password")
	signupCmd.Flags().StringVar(&accountFlags.name, "name", "", "display name")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")

	loginCmd.Flags().StringVar(&accountFlags.email, "email", "", "account email")
	loginCmd.Flags().StringVar(&accountFlags.password, "password", "", "account password")
	loginGoogleCmd.Flags().StringVar(&accountFlags.success, "success", "http://localhost:5173/", "redirect after a successful login")
	loginGoogleCmd.Flags().StringVar(&accountFlags.failure, "failure", "http://localhost:5173/login", "redirect after a failed login")
	loginCompleteCmd.Flags().StringVar(&accountFlags.secret, "secret", "", "session secret from the success URL")
	loginCmd.AddCommand(loginGoogleCmd, loginCompleteCmd)

	passwordForgotCmd.Flags().StringVar(&accountFlags.email, "email", "", "account email")
	passwordForgotCmd.Flags().StringVar(&accountFlags.redirect, "redirect", "http://localhost:5173/reset-password", "page the reset link points at")
	passwordResetCmd.Flags().StringVar(&accountFlags.userID, "user", "", "userId from the reset link")
	passwordResetCmd.Flags().StringVar(&accountFlags.secret, "secret", "", "secret from the reset link")
	passwordResetCmd.Flags().StringVar(&accountFlags.password, "password", "", "new password")
	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd, passwordCmd)
}
