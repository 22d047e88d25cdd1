package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"appt-service/internal/client"
	"appt-service/internal/config"
	"appt-service/internal/editor"
	"appt-service/internal/logger"
	"appt-service/internal/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type app struct {
	cfg    *config.ClientConfig
	log    *slog.Logger
	client *client.Client
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "apptctl",
		Short:         "Edit appointments from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a := &app{}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.log = logger.Setup(cfg.Env, os.Stderr)
		a.client = client.New(cfg.BaseURL, cfg.Timeout, models.Identity{UserID: cfg.UserID, Role: cfg.Role})
		return nil
	}

	rootCmd.AddCommand(a.listCmd())
	rootCmd.AddCommand(a.scheduleCmd())
	rootCmd.AddCommand(a.slotsCmd())
	rootCmd.AddCommand(a.editCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments of a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")

			list := editor.NewList(a.client, subject)
			if err := list.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("load appointments: %s", list.Err())
			}

			printAppointments(cmd.OutOrStdout(), list.Items())
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Subject (doctor) id")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func (a *app) scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the weekly schedule of a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")

			schedule, err := a.client.FetchSchedule(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if len(schedule) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no schedule configured")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for wd := time.Sunday; wd <= time.Saturday; wd++ {
				day, ok := schedule[wd]
				if !ok {
					continue
				}
				state := "active"
				if !day.IsActive {
					state = "off"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", wd, state, joinWindows(day.Windows))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("subject", "", "Subject (doctor) id")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func (a *app) slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the windows offered on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			dateStr, _ := cmd.Flags().GetString("date")

			date, err := models.ParseDate(dateStr)
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}

			res, err := a.client.Availability(cmd.Context(), subject, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", res.Date, res.State)
			taken := make(map[string]bool, len(res.Taken))
			for _, t := range res.Taken {
				taken[t.Start+"-"+t.End] = true
			}
			for _, w := range res.Windows {
				label := w.Start + "-" + w.End
				if taken[label] {
					fmt.Fprintf(out, "  %s (taken)\n", label)
					continue
				}
				fmt.Fprintf(out, "  %s\n", label)
			}
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Subject (doctor) id")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func (a *app) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <record-id>",
		Short: "Edit one appointment and submit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			ctx := cmd.Context()

			list := editor.NewList(a.client, subject)
			deps := editor.Deps{Loader: a.client, Gateway: a.client, Parent: list}
			identity := models.Identity{UserID: a.cfg.UserID, Role: a.cfg.Role}

			session, err := editor.Open(ctx, deps, identity, subject, args[0])
			if err != nil {
				return err
			}
			if msg := session.Err(); msg != "" {
				session.Discard()
				return fmt.Errorf("load schedule: %s", msg)
			}
			a.log.Debug("edit session opened",
				slog.String("record_id", args[0]),
				slog.String("availability", session.Availability().State.String()),
			)

			if err := applyEdits(cmd, session); err != nil {
				session.Discard()
				return err
			}

			if !session.CanSubmit() {
				session.Discard()
				return fmt.Errorf("no bookable window on %s", session.Working().Date.Format(models.DateLayout))
			}

			if err := session.Submit(ctx); err != nil {
				return fmt.Errorf("update failed: %s", session.Err())
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "appointment updated")
			if msg := list.Err(); msg != "" {
				return fmt.Errorf("reload appointments: %s", msg)
			}
			printAppointments(cmd.OutOrStdout(), list.Items())
			return nil
		},
	}

	cmd.Flags().String("subject", "", "Subject (doctor) id")
	cmd.Flags().String("date", "", "Move to date, YYYY-MM-DD")
	cmd.Flags().String("window", "", "Pick window, HH:MM-HH:MM")
	cmd.Flags().String("mode", "", "online or offline")
	cmd.Flags().Bool("paid", false, "Payment completed")
	cmd.Flags().Bool("visited", false, "Visit completed")
	cmd.Flags().Bool("cancel", false, "Cancel the appointment")
	cmd.Flags().String("cancel-reason", "", "Cancellation reason")
	cmd.Flags().String("reason", "", "Visit reason")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

// applyEdits pushes only the flags the user actually passed.
func applyEdits(cmd *cobra.Command, s *editor.Session) error {
	flags := cmd.Flags()

	if flags.Changed("date") {
		v, _ := flags.GetString("date")
		date, err := models.ParseDate(v)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
		if !s.Selectable(date) {
			return fmt.Errorf("%s is not bookable", v)
		}
		if err := s.SetDate(date); err != nil {
			return err
		}
	}

	if flags.Changed("window") {
		v, _ := flags.GetString("window")
		start, end, ok := strings.Cut(v, "-")
		if !ok {
			return fmt.Errorf("window must be HH:MM-HH:MM")
		}
		w, err := models.ParseTimeWindow(start, end)
		if err != nil {
			return err
		}
		if err := s.Select(w); err != nil {
			return err
		}
	}

	fields := []struct {
		flag   string
		field  editor.Field
		isBool bool
	}{
		{"mode", editor.FieldMode, false},
		{"paid", editor.FieldPaymentCompleted, true},
		{"visited", editor.FieldVisitCompleted, true},
		{"reason", editor.FieldReason, false},
		{"cancel-reason", editor.FieldCancelReason, false},
	}
	for _, f := range fields {
		if !flags.Changed(f.flag) {
			continue
		}
		var value any
		if f.isBool {
			value, _ = flags.GetBool(f.flag)
		} else {
			value, _ = flags.GetString(f.flag)
		}
		if err := s.SetField(f.field, value); err != nil {
			return err
		}
	}

	if flags.Changed("cancel") {
		v, _ := flags.GetBool("cancel")
		if err := s.SetCancelled(v); err != nil {
			return err
		}
		if s.CancelReasonRequired() && s.Working().CancelReason == "" {
			color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "warning: cancelling without a reason")
		}
	}

	return nil
}

func printAppointments(out io.Writer, items []models.Appointment) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tWINDOW\tMODE\tPAID\tVISITED\tSTATUS")
	for _, a := range items {
		status := "active"
		if a.IsCancelled {
			status = "cancelled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			a.ID, a.Date.Format(models.DateLayout), a.Window, a.Mode, a.PaymentCompleted, a.VisitCompleted, status)
	}
	_ = w.Flush()
}

func joinWindows(ws []models.TimeWindow) string {
	if len(ws) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, w.String())
	}
	return strings.Join(parts, ", ")
}
