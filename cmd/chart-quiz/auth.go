package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/go-chart-quiz/internal/auth"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the cached Spotify token used by the playlist commands",
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Spotify and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireSpotify(); err != nil {
				return err
			}
			authenticator, err := auth.New(a.cfg.Spotify, a.logger.Named("auth"))
			if err != nil {
				return err
			}

			client, err := authenticator.Authenticate(cmd.Context())
			if err != nil {
				return err
			}
			user, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching current user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s. Token cached at %s\n", user.DisplayName, authenticator.TokenPath())
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			authenticator, err := auth.New(a.cfg.Spotify, a.logger.Named("auth"))
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return fmt.Errorf("removing cached token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	cmd.AddCommand(login, logout)
	return cmd
}
