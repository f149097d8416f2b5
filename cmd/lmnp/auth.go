package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/config"
	"github.com/Veraticus/lmnp-ledger/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This command prints a Google consent URL, waits for the redirect on a local
callback server and saves the token. Later exports load the refresh token
from that file. You only need to run it once.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 client secret (overrides config)")
	cmd.Flags().String("callback", sheets.DefaultCallbackAddr, "address of the local callback server")
	cmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for the browser")
	cmd.Flags().Bool("force", false, "authenticate again even if a token is saved")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")
	if v, _ := cmd.Flags().GetString("client-id"); v != "" {
		clientID = v
	}
	if v, _ := cmd.Flags().GetString("client-secret"); v != "" {
		clientSecret = v
	}
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if clientID == "" || clientSecret == "" {
		return common.NewUserError("OAuth2 credentials not found: set sheets.client_id and sheets.client_secret or use --client-id and --client-secret", nil)
	}

	callback, _ := cmd.Flags().GetString("callback")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	oauthConfig := sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    config.OAuthTokenFile(),
		CallbackAddr: callback,
		Timeout:      timeout,
	}

	slog.Info("Starting Google Sheets authentication", "token_file", oauthConfig.TokenFile)

	if force, _ := cmd.Flags().GetBool("force"); force {
		if _, err := sheets.AuthenticateOAuth2Interactive(ctx, oauthConfig); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	} else if _, err := sheets.GetOrCreateToken(ctx, oauthConfig); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess("Google Sheets is configured"))
	fmt.Fprintln(out, cli.FormatInfo("Token saved to "+oauthConfig.TokenFile))
	fmt.Fprintln(out, cli.FormatInfo("Run 'lmnp report --export' to export the statements"))
	return nil
}
