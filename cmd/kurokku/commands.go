package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/config"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/supervisor"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/tui"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/web"
)

func runCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the display engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, _ := cmd.Flags().GetBool("console")
			driver, _ := cmd.Flags().GetString("driver")
			if console {
				driver = string(display.KindConsole)
			}
			return executeRun(flags, driver)
		},
	}
	cmd.Flags().Bool("console", false, "log frames instead of driving the LED (shorthand for --driver console)")
	cmd.Flags().String("driver", "", "display driver: auto, led, console, terminal or broadcast (default: config)")
	return cmd
}

func webCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run the engine on a virtual display served over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _ := cmd.Flags().GetString("host")
			port, _ := cmd.Flags().GetInt("port")
			return executeWeb(flags, host, port)
		},
	}
	cmd.Flags().String("host", "", "listen host (default: config)")
	cmd.Flags().Int("port", 0, "listen port (default: config)")
	return cmd
}

func stopCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask running engines to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(ctx context.Context, env *storeEnv) error {
				if err := env.store.Publish(ctx, document.ControlChannel, document.ControlStop); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the engine state recorded by the supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			state, err := supervisor.LoadState(dir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatStatus(state))
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold kurokku.toml and a sample widgets document",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "All files already exist, nothing to create.")
				return nil
			}
			for _, path := range created {
				fmt.Fprintf(out, "Created %s\n", path)
			}
			return nil
		},
	}
}

func monitorCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch a web display from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				url = monitorURL(cfg.Web)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			updates := tui.Watch(ctx, url, tui.DefaultRetry)
			program := tea.NewProgram(tui.New(updates, url, cfg.Monitor.AccentColor),
				tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("url", "", "websocket URL (default: ws://<web.host>:<web.port>/ws)")
	return cmd
}

// monitorURL derives the websocket URL from the web section. A wildcard
// listen host is reached through localhost.
func monitorURL(w config.WebConfig) string {
	host := w.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(w.Port)) + web.WebsocketPath
}

// formatStatus renders the supervisor state for "kurokku status".
func formatStatus(s supervisor.State) string {
	if s.PID == 0 && s.Attempt == 0 {
		return "No engine state found. Run 'kurokku run' or 'kurokku web' first.\n"
	}

	var b strings.Builder
	b.WriteString("Kurokku Status\n")
	b.WriteString("──────────────\n")
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %-20s %s\n", label+":", value)
	}

	state := "stopped"
	switch {
	case s.Running():
		state = "running"
	case !s.Stopped:
		state = "failed"
	}
	row("State", state)
	row("PID", strconv.Itoa(s.PID))
	row("Attempt", strconv.Itoa(s.Attempt))
	if s.ConfigHash != "" {
		row("Config", s.ConfigHash)
	}
	if s.Widget != "" {
		row("Widget", s.Widget)
	}
	row("Brightness", strconv.Itoa(s.Brightness))
	if !s.StartedAt.IsZero() {
		row("Started", s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if !s.LastOutputAt.IsZero() {
		row("Last output", s.LastOutputAt.Format("2006-01-02 15:04:05"))
	}
	if !s.FinishedAt.IsZero() {
		row("Finished", s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if s.ConsecutiveErrs > 0 {
		row("Consecutive errors", strconv.Itoa(s.ConsecutiveErrs))
	}
	if s.LastError != "" {
		row("Last error", s.LastError)
	}
	return b.String()
}
