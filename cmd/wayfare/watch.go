package main

import (
	"errors"

	"github.com/spf13/cobra"

	"pkt.systems/wayfare"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pending booking watchdog in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath, func(a *app) error {
				if !a.cfg.Watchdog.Enabled {
					return errors.New("watchdog.enabled is false")
				}
				shell, err := a.shell(wayfare.WithWatchdog())
				if err != nil {
					return err
				}
				settings := shell.Watchdog().Config()
				a.logger.Info("watchdog running", "interval", settings.Interval, "threshold", settings.Threshold)
				return runShell(cmd.Context(), a, shell)
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
