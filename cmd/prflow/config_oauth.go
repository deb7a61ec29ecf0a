package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/holon-run/prflow/pkg/auth"
	"github.com/holon-run/prflow/pkg/config"
	"github.com/spf13/cobra"
)

var (
	oauthClientID     string
	oauthClientSecret string
)

var configOAuthCmd = &cobra.Command{
	Use:   "config-oauth",
	Short: "Store the GitHub OAuth app used for browser sign-in",
	Long: fmt.Sprintf(`Config-oauth stores the client id and secret of a GitHub OAuth app.

The app's callback URL must be http://127.0.0.1:%d%s. Missing values are
prompted for.`, auth.DefaultCallbackPort, auth.CallbackPath),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadConfig()
		if err != nil {
			return err
		}

		clientID := strings.TrimSpace(oauthClientID)
		clientSecret := strings.TrimSpace(oauthClientSecret)

		var fields []huh.Field
		if clientID == "" {
			fields = append(fields, huh.NewInput().
				Title("OAuth client id").
				Value(&clientID).
				Validate(required("client id")))
		}
		if clientSecret == "" {
			fields = append(fields, huh.NewInput().
				Title("OAuth client secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret).
				Validate(required("client secret")))
		}
		if len(fields) > 0 {
			if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
				return err
			}
		}

		if err := saveOAuthApp(store, clientID, clientSecret); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OAuth app saved to %s\n", store.Path())
		return nil
	},
}

func saveOAuthApp(store config.ReadWriter, clientID, clientSecret string) error {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("both client id and client secret are required")
	}
	if err := store.Set(config.KeyOAuthClientID, clientID); err != nil {
		return err
	}
	if err := store.Set(config.KeyOAuthClientSecret, clientSecret); err != nil {
		return err
	}
	return store.Save()
}

func init() {
	configOAuthCmd.Flags().StringVar(&oauthClientID, "client-id", "", "OAuth app client id")
	configOAuthCmd.Flags().StringVar(&oauthClientSecret, "client-secret", "", "OAuth app client secret")
	rootCmd.AddCommand(configOAuthCmd)
}
