package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/wayfare/internal/appconfig"
	"pkt.systems/wayfare/internal/roles"
	"pkt.systems/wayfare/schema"
)

func newResolveCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "resolve [session.json|-]",
		Short: "Resolve a session payload to its landing route without calling the API",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			table, err := cfg.RouteTable()
			if err != nil {
				return err
			}
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			session, err := readSession(cmd.InOrStdin(), source)
			if err != nil {
				return err
			}
			rule := roles.Explain(session)
			path, err := table.Path(rule.Target)
			if err != nil {
				return err
			}
			return printLanding(cmd.OutOrStdout(), schema.Landing{
				Authenticated: session != nil,
				Target:        rule.Target,
				Path:          path,
				Rule:          rule.Name,
				Session:       session,
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

// readSession decodes an auth payload. A JSON null yields a nil session.
func readSession(stdin io.Reader, source string) (*schema.AuthSession, error) {
	var r io.Reader = stdin
	if source != "-" {
		file, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		r = file
	}
	var session *schema.AuthSession
	if err := json.NewDecoder(r).Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: session payload: %v", schema.ErrInvalidRequest, err)
	}
	return session, nil
}
