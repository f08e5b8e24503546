package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-assist/internal/agents"
	"github.com/celerix-dev/celerix-assist/internal/app"
	"github.com/celerix-dev/celerix-assist/internal/config"
	"github.com/celerix-dev/celerix-assist/internal/engine"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
	"github.com/celerix-dev/celerix-assist/pkg/sdk"
)

type globals struct {
	cfg      config.Config
	store    string
	dataDir  string
	addr     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	g := &globals{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "assist",
		Short:         "Chat with the assistant agents from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.store != "" {
				g.cfg.Store = g.store
			}
			if g.dataDir != "" {
				g.cfg.DataDir = g.dataDir
			}
			if g.addr != "" {
				g.cfg.StoreAddr = g.addr
			}
			if g.logLevel != "" {
				g.cfg.LogLevel = g.logLevel
			}
		},
	}

	root.PersistentFlags().StringVar(&g.store, "store", "", "slot store backend: memory, file, bolt, postgres, remote (default $ASSIST_STORE or file)")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "directory for the file backend (default $ASSIST_DATA_DIR or ./data)")
	root.PersistentFlags().StringVar(&g.addr, "addr", "", "daemon address for the remote backend (default $ASSIST_STORE_ADDR)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn, error (default $LOG_LEVEL)")

	root.AddCommand(
		loginCmd(g),
		logoutCmd(g),
		whoamiCmd(g),
		agentsCmd(),
		sendCmd(g),
		historyCmd(g),
		clearCmd(g),
		importCmd(g),
		migrateCmd(g),
		pingCmd(g),
	)
	return root
}

// withApp runs fn against a core opened from the current configuration.
func (g *globals) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	level := g.cfg.LogLevel
	if g.logLevel == "" && os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := app.NewLogger(level, cmd.ErrOrStderr(), false)
	a, err := app.New(cmd.Context(), g.cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func loginCmd(g *globals) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a name and email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.App) error {
				p, err := a.Identity.Login(name, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", p.Name, p.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; conversations are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.App) error {
				if err := a.Identity.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func whoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.App) error {
				p, ok := a.Identity.Active()
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the available agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tROLE")
			for _, a := range agents.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Category, a.Role)
			}
			return w.Flush()
		},
	}
}

func sendCmd(g *globals) *cobra.Command {
	var audioOut string
	cmd := &cobra.Command{
		Use:   "send <agent> <message...>",
		Short: "Send a message to an agent and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID := args[0]
			if _, ok := agents.Get(agentID); !ok {
				return fmt.Errorf("unknown agent %q, see `assist agents`", agentID)
			}
			text := strings.Join(args[1:], " ")
			return g.withApp(cmd, func(a *app.App) error {
				ex, err := a.Session.Send(cmd.Context(), agentID, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ex.Assistant.Content)
				if audioOut == "" {
					return nil
				}
				a.Session.Wait()
				return saveAudio(a, audioOut)
			})
		},
	}
	cmd.Flags().StringVar(&audioOut, "audio-out", "", "write the spoken reply to this file (needs ELEVENLABS_API_KEY)")
	return cmd
}

func saveAudio(a *app.App, path string) error {
	clip := a.Session.Audio()
	if clip == nil {
		return fmt.Errorf("no audio was produced")
	}
	src, err := clip.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func historyCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [agent]",
		Short: "Print a conversation, or list agents with history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					ids, err := a.History.Agents()
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(out, id)
					}
					return nil
				}
				msgs, err := a.History.Messages(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, msgs)
				}
				for _, m := range msgs {
					fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), m.Role, m.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func clearCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <agent>",
		Short: "Delete the conversation with one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.App) error {
				if err := a.History.ClearAgent(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared", args[0])
				return nil
			})
		},
	}
}

func importCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import <agent> <file.json>",
		Short: "Replace a conversation with messages from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var msgs []schema.Message
			if err := json.Unmarshal(raw, &msgs); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}
			return g.withApp(cmd, func(a *app.App) error {
				if err := a.History.Replace(args[0], msgs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d messages into %s\n", len(msgs), args[0])
				return nil
			})
		},
	}
}

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <from-backend> <to-backend>",
		Short: "Copy every slot from one backend to another",
		Long: `Copy every slot from one backend to another, e.g.

  assist migrate file bolt

Both backends are located with the usual ASSIST_* settings.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.NewLogger("warn", cmd.ErrOrStderr(), false)
			ctx := cmd.Context()

			srcOpts := app.StoreOptions(g.cfg)
			srcOpts.Backend = args[0]
			dstOpts := app.StoreOptions(g.cfg)
			dstOpts.Backend = args[1]

			src, err := sdk.Open(ctx, srcOpts, logger)
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer src.Close()
			dst, err := sdk.Open(ctx, dstOpts, logger)
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer dst.Close()

			n, err := engine.Migrate(src, dst)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d slots from %s to %s\n", n, args[0], args[1])
			return nil
		},
	}
}

func pingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the slot daemon answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := g.cfg.StoreAddr
			if addr == "" {
				addr = fmt.Sprintf("localhost:%d", g.cfg.KVPort)
			}
			client, err := sdk.Connect(addr, g.cfg.DisableTLS, nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", addr, err)
			}
			defer client.Close()
			if err := client.Ping(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(bytes))
	return nil
}
