// Package cli provides the command-line interface for the janusd server.
package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"janus/internal/config"
	"janus/internal/logs"
	"janus/internal/registry"
	"janus/internal/server"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-01-15"
)

// App holds the application dependencies shared across subcommands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "janusd",
		Short: "Janus - multi-broker order-execution middleware",
		Long: `Janus is a broker-agnostic order-execution server.

It fronts heterogeneous broker connections behind a single symbol registry,
order router and RPC surface, so client applications never need to know
which broker an account is routed through.

Use 'janusd help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logs.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/janus)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newBrokersCmd())
	rootCmd.AddCommand(newHarmonyCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("janusd v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage the janusd configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Accounts")
	for _, acct := range cfg.Accounts {
		output.Printf("  %-12s broker=%-8s allow_short=%-5v locate_required=%v\n",
			acct.Alias, acct.Broker, acct.AllowShort, acct.LocateRequired)
	}
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Default symbols:    %v\n", cfg.Global.MarketData.DefaultSymbols)
	output.Printf("  Use RTH:            %v\n", cfg.Global.MarketData.UseRTH)
	output.Println()

	output.Bold("Reconnect / Refresh")
	output.Printf("  Reconnect interval: %ds\n", cfg.Global.Reconnect.IntervalSeconds)
	output.Printf("  Refresh debounce:   %dms\n", cfg.Global.RefreshDebounceMs)

	return nil
}

// newServeCmd runs the janusd server until interrupted, performing the
// documented startup and shutdown sequence.
func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the janusd order-execution server",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			dbPath := filepath.Join(config.DefaultConfigDir(), "janus.db")
			store, err := registry.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}

			srv, err := server.New(app.Config, store, addr, app.Logger)
			if err != nil {
				store.Close()
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			output.Info("janusd listening on %s", addr)
			app.Logger.Info().Str("addr", addr).Int("accounts", len(app.Config.Accounts)).Msg("janusd starting")

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8765", "RPC listen address")
	return cmd
}
