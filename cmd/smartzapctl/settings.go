package main

import (
	"errors"
	"fmt"

	"github.com/smartzap/backend/internal/repositories"
	"github.com/smartzap/backend/internal/services"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write WhatsApp settings",
	Long: `Settings override the WHATSAPP_* environment variables. Known keys: ` +
		repositories.SettingPhoneNumberID + ", " + repositories.SettingAccessToken + ", " +
		repositories.SettingWebhookVerifyToken + ".",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which credentials the dispatcher would use",
	RunE:  runSettingsCheck,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	value, err := repositories.NewSettingsRepo(e.pool).Get(cmd.Context(), args[0])
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("setting %s is not set", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := repositories.NewSettingsRepo(e.pool).Set(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Setting %s updated\n", args[0])
	return nil
}

func runSettingsCheck(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	provider := e.credentials()
	creds, err := provider.Credentials(cmd.Context())
	if errors.Is(err, services.ErrMissingCredentials) {
		return errors.New("credentials are incomplete, campaigns cannot be dispatched")
	}
	if err != nil {
		return err
	}
	fmt.Printf("Phone number ID: %s\n", orDash(creds.PhoneNumberID))
	fmt.Printf("Access token:    %s\n", mask(creds.AccessToken))
	fmt.Printf("Verify token:    %s\n", mask(provider.VerifyToken(cmd.Context())))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return "-"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
