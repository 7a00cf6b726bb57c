package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/wayfare"
	"pkt.systems/wayfare/schema"
)

func newPendingCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect and manage the pending booking marker",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newPendingShowCmd(&cfgPath))
	cmd.AddCommand(newPendingArmCmd(&cfgPath))
	cmd.AddCommand(newPendingClearCmd(&cfgPath))
	cmd.AddCommand(newPendingCheckCmd(&cfgPath))

	return cmd
}

func newPendingShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the pending booking marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				shell, err := a.shell()
				if err != nil {
					return err
				}
				marker, ok, err := shell.Repository().Get(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					_, err := fmt.Fprintln(out, "no pending booking")
					return err
				}
				age := marker.Elapsed(time.Now()).Truncate(time.Second)
				_, err = fmt.Fprintf(out, "%s created %s (age %s, expires after %s)\n",
					marker.BookingID, marker.CreatedAt.UTC().Format(time.RFC3339), age, a.cfg.WatchdogSettings().Threshold)
				return err
			})
		},
	}
}

func newPendingArmCmd(cfgPath *string) *cobra.Command {
	var createdAtMS int64
	cmd := &cobra.Command{
		Use:   "arm <booking-id>",
		Short: "Record a booking as awaiting payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if createdAtMS < 0 {
				return fmt.Errorf("%w: --created-at-ms must be positive", schema.ErrInvalidRequest)
			}
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				shell, err := a.shell()
				if err != nil {
					return err
				}
				repo := shell.Repository()
				var marker schema.PendingBooking
				if createdAtMS > 0 {
					marker = schema.PendingBookingFromMillis(schema.BookingID(args[0]), createdAtMS)
					err = repo.Set(cmd.Context(), marker)
				} else {
					marker, err = repo.Arm(cmd.Context(), schema.BookingID(args[0]), time.Now())
				}
				if err != nil {
					return err
				}
				a.logger.Info("pending booking armed", "booking", marker.BookingID, "created_at_ms", marker.CreatedAtEpochMillis())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&createdAtMS, "created-at-ms", 0, "creation time in epoch milliseconds (default now)")
	return cmd
}

func newPendingClearCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the pending booking marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				shell, err := a.shell()
				if err != nil {
					return err
				}
				return shell.Repository().Clear(cmd.Context())
			})
		},
	}
}

func newPendingCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one watchdog check and cancel the booking if it expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(a *app) error {
				shell, err := a.shell(wayfare.WithWatchdog())
				if err != nil {
					return err
				}
				wd := shell.Watchdog()
				if wd == nil {
					return errors.New("watchdog unavailable")
				}
				outcome, err := wd.Check(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome)
				return err
			})
		},
	}
}
