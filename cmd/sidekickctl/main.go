// Sidekickctl - a command-line surface for the Sidekick background process.
// It speaks the same envelope protocol as the panel and popup surfaces.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tebita/sidekick/internal/bus"
	"github.com/tebita/sidekick/internal/domain"
	"github.com/tebita/sidekick/internal/surface"
)

var (
	addr    string
	timeout time.Duration
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "sidekickctl",
		Short:         "Talk to the sidekickd background process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "ws://localhost:8080/ws/surface", "surface WebSocket endpoint")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request deadline (the bus itself has none)")

	root.AddCommand(
		stateCmd(),
		watchCmd(),
		scrapeCmd(),
		signInCmd(),
		signOutCmd(),
		resetCmd(),
		letterCmd(),
		overlayCmd(),
		panelCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// attach dials the daemon and mounts a state mirror.
func attach(ctx context.Context) (*bus.Client, *surface.Mirror, error) {
	client, err := bus.Dial(ctx, addr, nil)
	if err != nil {
		return nil, nil, err
	}
	mirror, err := surface.Attach(ctx, client, nil)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, mirror, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			return printJSON(mirror.Snapshot())
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream state-changed broadcasts until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			client, mirror, err := attach(dialCtx)
			if err != nil {
				return err
			}
			defer client.Close()

			mirror.OnChange(func(s domain.SessionState) {
				_ = printJSON(s)
			})
			_ = printJSON(mirror.Snapshot())

			<-ctx.Done()
			return nil
		},
	}
}

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Trigger an extraction pass against the open profile page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, _, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var record domain.Profile
			if err := client.RequestJSON(ctx, bus.KindScrapeProfile, nil, &record); err != nil {
				return err
			}
			return printJSON(record)
		},
	}
}

func signInCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in against the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err := mirror.SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			return printJSON(snap.Auth)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign the background session out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err := mirror.SignOut(ctx)
			if err != nil {
				return err
			}
			return printJSON(snap.Auth)
		},
	}
}

func resetCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Request a password-reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			return mirror.ResetPassword(ctx, email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func letterCmd() *cobra.Command {
	var insert bool
	cmd := &cobra.Command{
		Use:   "letter",
		Short: "Generate a cover letter for the open job posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, _, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			payload := map[string]any{"insert": insert}
			var snap domain.SessionState
			if err := client.RequestJSON(ctx, bus.KindGenerateLetter, payload, &snap); err != nil {
				return err
			}
			if snap.Letter.Status == domain.LetterFailed {
				return fmt.Errorf("generation failed: %s", snap.Letter.Error)
			}
			fmt.Println(snap.Letter.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&insert, "insert", false, "insert the letter into the proposal textarea")
	return cmd
}

func overlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "overlay [landing|sync-profile|settings|cover-letter|none]",
		Short:     "Activate an overlay",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"landing", "sync-profile", "settings", "cover-letter", "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if name == "none" {
				name = ""
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err := mirror.Dispatch(ctx, "overlay/set", map[string]string{"name": name})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"overlay": snap.Overlay})
		},
	}
}

func panelCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "panel [show|hide|toggle]",
		Short:     "Control panel visibility",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"show", "hide", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, mirror, err := attach(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			snap, err := mirror.Dispatch(ctx, "panel/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"panelVisible": snap.PanelVisible})
		},
	}
}
