package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/wayfare"
)

const stopTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noWatchdog bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser entry flow and run the pending booking watchdog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfgPath, func(a *app) error {
				if addr != "" {
					a.cfg.HTTP.Addr = addr
				}
				opts := []wayfare.Option{wayfare.WithHTTP()}
				if a.cfg.Watchdog.Enabled && !noWatchdog {
					opts = append(opts, wayfare.WithWatchdog())
				}
				shell, err := a.shell(opts...)
				if err != nil {
					return err
				}
				a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr, "watchdog", len(opts) > 1)
				return runShell(cmd.Context(), a, shell)
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	cmd.Flags().BoolVar(&noWatchdog, "no-watchdog", false, "do not run the pending booking watchdog")
	return cmd
}

// runShell starts shell and blocks until SIGINT, SIGTERM or a component
// failure. It returns only after the shell has stopped, so callers may
// release the store afterwards.
func runShell(parent context.Context, a *app, shell *wayfare.Shell) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := shell.Start(ctx); err != nil {
		return err
	}
	err := shell.Wait()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if stopErr := shell.Stop(stopCtx); stopErr != nil {
		a.logger.Warn("shell stop failed", "err", stopErr)
		if err == nil {
			err = stopErr
		}
	}
	return err
}
