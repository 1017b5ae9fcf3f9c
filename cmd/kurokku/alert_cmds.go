package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

const (
	defaultAlertTTL = 300 * time.Second
	// secondsPerChar sizes the default display duration to the message.
	secondsPerChar = 0.4
	// alertTimeLayout sorts lexically in time order.
	alertTimeLayout = "2006-01-02T15:04:05.000000"
)

func alertCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Send, list and clear alerts",
	}
	cmd.AddCommand(alertSendCmd(flags), alertListCmd(flags), alertClearCmd(flags))
	return cmd
}

func alertSendCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Store an alert for display",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			duration, _ := cmd.Flags().GetFloat64("duration")
			priority, _ := cmd.Flags().GetInt("priority")
			keep, _ := cmd.Flags().GetBool("keep")

			a := newAlert(strings.Join(args, " "), duration, priority, !keep, time.Now())
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				if err := sendAlert(ctx, env.store, a, ttl); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent alert %s (expires in %s)\n", a.ID, ttl)
				return nil
			})
		},
	}
	cmd.Flags().Duration("ttl", defaultAlertTTL, "time to live")
	cmd.Flags().Float64("duration", 0, "display duration in seconds (default: message length × 0.4)")
	cmd.Flags().Int("priority", 0, "priority; lower values display first")
	cmd.Flags().Bool("keep", false, "keep the alert after it has been shown")
	return cmd
}

func alertListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				alerts, err := listAlerts(ctx, env.store)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatAlerts(alerts))
				return nil
			})
		},
	}
}

func alertClearCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every pending alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				n, err := clearAlerts(ctx, env.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d alerts\n", n)
				return nil
			})
		},
	}
}

// newAlert builds an alert with a fresh id. A non-positive duration is sized
// to the message.
func newAlert(message string, duration float64, priority int, deleteAfter bool, now time.Time) document.Alert {
	if duration <= 0 {
		duration = float64(utf8.RuneCountInString(message)) * secondsPerChar
	}
	return document.Alert{
		ID:                 uuid.NewString(),
		Timestamp:          now.Format(alertTimeLayout),
		Message:            message,
		Priority:           priority,
		DisplayDuration:    duration,
		DeleteAfterDisplay: deleteAfter,
	}
}

// sendAlert stores a under its key with the given expiry. The keyspace
// notification wakes running engines.
func sendAlert(ctx context.Context, st store.Writer, a document.Alert, ttl time.Duration) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return st.Set(ctx, a.Key(), body, ttl)
}

// pendingAlert is an alert with its remaining lifetime.
type pendingAlert struct {
	document.Alert
	TTL time.Duration
}

// listAlerts returns every readable alert in display order. Records that fail
// to parse or vanish mid-scan are skipped.
func listAlerts(ctx context.Context, st store.Reader) ([]pendingAlert, error) {
	keys, err := st.Scan(ctx, document.AlertPattern)
	if err != nil {
		return nil, err
	}
	alerts := make([]document.Alert, 0, len(keys))
	for _, key := range keys {
		data, err := st.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		a, err := document.ParseAlert(key, data)
		if err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	document.SortAlerts(alerts)

	out := make([]pendingAlert, 0, len(alerts))
	for _, a := range alerts {
		ttl, err := st.TTL(ctx, a.Key())
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, pendingAlert{Alert: a, TTL: ttl})
	}
	return out, nil
}

func clearAlerts(ctx context.Context, st store.Store) (int, error) {
	keys, err := st.Scan(ctx, document.AlertPattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return st.Del(ctx, keys...)
}

func formatAlerts(alerts []pendingAlert) string {
	if len(alerts) == 0 {
		return "No pending alerts\n"
	}
	var b strings.Builder
	b.WriteString("Alerts\n")
	b.WriteString("──────\n")
	for _, a := range alerts {
		expires := "never"
		if a.TTL >= 0 {
			expires = a.TTL.Round(time.Second).String()
		}
		fmt.Fprintf(&b, "  %s\n", a.ID)
		fmt.Fprintf(&b, "    %-18s %s\n", "Message:", a.Message)
		fmt.Fprintf(&b, "    %-18s %s\n", "Timestamp:", a.Timestamp)
		fmt.Fprintf(&b, "    %-18s %d\n", "Priority:", a.Priority)
		fmt.Fprintf(&b, "    %-18s %.1fs\n", "Display duration:", a.DisplayDuration)
		fmt.Fprintf(&b, "    %-18s %s\n", "Expires in:", expires)
	}
	return b.String()
}
