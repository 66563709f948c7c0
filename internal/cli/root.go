// Package cli provides the command-line interface for the market
// sentinel: the live watcher, one-shot analysis, history tools and
// the signal archive.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/logging"
	"bybit-sentinel/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// openStore opens the signal archive at the configured path.
func (a *App) openStore() (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal store at %s: %w", a.Config.Store.Path, err)
	}
	return st, nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Bybit Sentinel - price-action signal watcher for derivatives",
		Long: `Bybit Sentinel watches Bybit linear perpetuals, runs a price-action
confluence pipeline on every candle close and emits scored LONG/SHORT
signals with entry, stop-loss and take-profit levels. It never places
orders.

Use 'sentinel help <command>' for more information about a command.
Use 'sentinel examples' to see common workflows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/sentinel)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newBackfillCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())
	addHelpCommands(rootCmd, app)

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
				output.Printf("Bybit Sentinel v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}
