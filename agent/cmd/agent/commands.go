package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xrbridge/xrbridge/agent/internal/client"
	"github.com/xrbridge/xrbridge/agent/internal/stats"
	"github.com/xrbridge/xrbridge/pkg/types"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	server    string
	apiKey    string
	keyHeader string
}

func (g *globals) client() (*client.Client, error) {
	var opts []client.Option
	if g.apiKey != "" {
		opts = append(opts, client.WithAPIKey(g.keyHeader, g.apiKey))
	}
	return client.New(g.server, opts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "xrbridge-agent",
		Short: "Operate and inspect an xrbridge relay",
		Long: `xrbridge-agent drives a running relay from the command line.

It can set coordinates and codes, arm press/haptic/cue events, read user
pose records, hold a WebSocket session open to watch notifications, and
summarize the relay's Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("XRBRIDGE_SERVER", "http://localhost:5000"), "relay base URL")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", os.Getenv("XRBRIDGE_API_KEY"), "API key for command endpoints")
	root.PersistentFlags().StringVar(&g.keyHeader, "api-key-header", "X-API-Key", "header carrying the API key")

	root.AddCommand(
		coordsCmd(g),
		buttonIndexCmd(g),
		codeCmd(g),
		pressCmd(g),
		hapticCmd(g),
		cueCmd(g),
		usersCmd(g),
		userCmd(g),
		healthCmd(g),
		listenCmd(g),
		statsCmd(g),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFloats(args []string) (float64, float64, error) {
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}

func parseInts(args []string) (int, int, error) {
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}

func coordsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coords",
		Short: "Read or overwrite the pointer coordinates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the latest coordinates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			coords, err := c.Coordinates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), coords)
		},
	}, &cobra.Command{
		Use:   "set X Y",
		Short: "Overwrite the coordinates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parseFloats(args)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.SendCoordinates(cmd.Context(), x, y); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "coordinates set to x=%g, y=%g\n", x, y)
			return nil
		},
	})
	return cmd
}

func buttonIndexCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "button-index N",
		Short: "Set the selected button index (-1 for none)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("button index: %w", err)
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.SetButtonIndex(cmd.Context(), n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "button index set to %d\n", n)
			return nil
		},
	}
}

func codeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "code X Y",
		Short: "Set the code pair delivered with future presses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parseInts(args)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			reply, err := c.SetCode(cmd.Context(), types.CodePair{X: x, Y: y})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reply)
		},
	}
}

func pressCmd(g *globals) *cobra.Command {
	var codeX, codeY int
	cmd := &cobra.Command{
		Use:   "press",
		Short: "Arm a button press",
		Long: `Arm a button press. With both --code-x and --code-y the code pair is
stored first, atomically with the arm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fx, fy := cmd.Flags().Changed("code-x"), cmd.Flags().Changed("code-y")
			if fx != fy {
				return errors.New("--code-x and --code-y must be given together")
			}
			var code *types.CodePair
			if fx {
				code = &types.CodePair{X: codeX, Y: codeY}
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			reply, err := c.Press(cmd.Context(), code)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reply)
		},
	}
	cmd.Flags().IntVar(&codeX, "code-x", 0, "code X to store with the press")
	cmd.Flags().IntVar(&codeY, "code-y", 0, "code Y to store with the press")
	return cmd
}

func hapticCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "haptic",
		Short: "Arm a haptic pulse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			seq, err := c.TriggerHaptic(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "haptic armed, seq=%d\n", seq)
			return nil
		},
	}
}

func cueCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cue",
		Short: "Arm a cue toggle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			seq, err := c.ToggleCue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cue armed, seq=%d\n", seq)
			return nil
		},
	}
}

func usersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Print every known user record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			users, err := c.Users(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		},
	}
}

func userCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "user ID",
		Short: "Print one user record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			rec, err := c.User(cmd.Context(), args[0])
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func healthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print relay liveness and sequence counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h)
		},
	}
}

func listenCmd(g *globals) *cobra.Command {
	var (
		userID    string
		interval  time.Duration
		reconnect bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Hold a /ws session open and print notifications",
		Long: `Open a WebSocket session and print every message the relay sends.

A frame is sent every --interval so that notifications are flushed by
relays running in piggyback mode. Without --user-id the frame is an empty
JSON object; with it the frame is a pose record for that id, which
replaces any record the relay holds for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			l := &client.Listener{
				URL:       c.WebSocketURL(),
				Interval:  interval,
				Reconnect: reconnect,
				OnMessage: func(n client.Notification) {
					switch n.Kind {
					case client.KindPressed:
						fmt.Fprintf(out, "%s pressed codeX=%d codeY=%d\n", time.Now().Format(time.TimeOnly), n.Code.X, n.Code.Y)
					case client.KindHaptic, client.KindCue:
						fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), n.Kind)
					default:
						slog.Debug("relay message", "kind", n.Kind, "body", string(n.Raw))
					}
				},
			}
			if userID != "" {
				l.Frame = func() types.InboundFrame {
					return types.InboundFrame{UserID: userID}
				}
			}
			return l.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "send pose frames as this user id")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "time between outbound frames")
	cmd.Flags().BoolVar(&reconnect, "reconnect", true, "redial with backoff when the session drops")
	return cmd
}

func statsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the relay's Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			s, err := stats.Scrape(cmd.Context(), c)
			if err != nil {
				return err
			}
			return s.Write(cmd.OutOrStdout())
		},
	}
}
