package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/wayfare/schema"
)

func newLoginCmd() *cobra.Command {
	var cfgPath string
	var email string
	var passwordFromStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace API and store the token encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			password, err := resolvePassword(cmd, passwordFromStdin)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfgPath, func(a *app) error {
				result, err := a.client.Login(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				if err := a.creds.Save(result.Token); err != nil {
					return err
				}
				shell, err := a.shell()
				if err != nil {
					return err
				}
				landing, err := shell.Land(result.Session)
				if err != nil {
					return err
				}
				a.logger.Info("login ok", "user", result.Session.UserID(), "target", landing.Target)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "signed in; landing %s (%s)\n", landing.Path, landing.Target)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordFromStdin, "password-from-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath, func(a *app) error {
				if err := a.creds.Clear(); err != nil {
					return err
				}
				a.logger.Info("logged out")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the current session and print where it lands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath, func(a *app) error {
				shell, err := a.shell()
				if err != nil {
					return err
				}
				landing, err := shell.Enter(cmd.Context())
				if err != nil {
					return err
				}
				return printLanding(cmd.OutOrStdout(), landing)
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

type landingOutput struct {
	schema.Landing
	User     *schema.User              `json:"user,omitempty"`
	Agencies []schema.AgencyMembership `json:"agencies,omitempty"`
}

func printLanding(w io.Writer, landing schema.Landing) error {
	out := landingOutput{Landing: landing}
	if landing.Session != nil {
		out.User = landing.Session.User
		out.Agencies = landing.Session.Agencies
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func resolvePassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		pass := strings.TrimSpace(string(data))
		if pass == "" {
			return "", errors.New("password from stdin is empty")
		}
		return pass, nil
	}
	passphrase, err := keymgmt.PromptPassphrase(cmd.InOrStdin(), "Password: ", cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	if len(passphrase) == 0 {
		return "", errors.New("password is empty")
	}
	return string(passphrase), nil
}
