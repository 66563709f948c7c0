package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCommandsCmd(app))
	rootCmd.AddCommand(newExamplesCmd(app))
	rootCmd.AddCommand(newQuickstartCmd(app))
}

func newCommandsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		Long:  "Display all available commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Bybit Sentinel Commands")
			output.Println()

			categories := []struct {
				name     string
				commands []struct {
					cmd  string
					desc string
				}
			}{
				{
					name: "Live Pipeline",
					commands: []struct {
						cmd  string
						desc string
					}{
						{"watch", "Ingest candles and emit signals"},
						{"watch --dry-run", "Log signals instead of notifying"},
					},
				},
				{
					name: "Analysis",
					commands: []struct {
						cmd  string
						desc string
					}{
						{"analyze <symbol>", "One-shot market structure report"},
						{"backtest <symbol>", "Replay history through the engine"},
					},
				},
				{
					name: "History",
					commands: []struct {
						cmd  string
						desc string
					}{
						{"backfill [symbols...]", "Fetch candle history over REST"},
						{"signals", "List recorded signals"},
					},
				},
				{
					name: "Configuration",
					commands: []struct {
						cmd  string
						desc string
					}{
						{"config init", "Write a config.toml template"},
						{"config show", "Show the effective configuration"},
						{"config validate", "Validate the configuration"},
						{"config path", "Show the config directory"},
					},
				},
				{
					name: "Help",
					commands: []struct {
						cmd  string
						desc string
					}{
						{"help <command>", "Detailed help"},
						{"commands", "List all commands"},
						{"examples", "Common workflows"},
						{"quickstart", "New user guide"},
						{"version", "Version information"},
					},
				},
			}

			for _, cat := range categories {
				output.Bold(cat.name)
				for _, c := range cat.commands {
					output.Printf("  %-30s %s\n", output.Cyan(c.cmd), c.desc)
				}
				output.Println()
			}

			output.Dim("Use 'sentinel help <command>' for detailed help on any command")

			return nil
		},
	}
}

func newExamplesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		Long:  "Display examples of common signal workflows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Run the Watcher",
					commands: []string{
						"sentinel config init            # Write a config template",
						"sentinel watch --dry-run        # Log signals, no notifications",
						"sentinel watch                  # Full pipeline",
					},
				},
				{
					title: "Inspect a Market",
					commands: []string{
						"sentinel analyze BTCUSDT        # Structure, zones, setup, score",
						"sentinel analyze ETHUSDT -t 4h  # Different entry timeframe",
						"sentinel analyze BTCUSDT --json # Machine-readable report",
					},
				},
				{
					title: "Review Signal History",
					commands: []string{
						"sentinel signals                # Most recent signals",
						"sentinel signals --stage ENTRY --since 24h",
						"sentinel signals --symbol BTCUSDT --side LONG",
					},
				},
				{
					title: "Replay History",
					commands: []string{
						"sentinel backtest BTCUSDT       # Last 1000 hourly candles",
						"sentinel backtest ETHUSDT -t 4h --limit 500",
					},
				},
				{
					title: "Check Data Coverage",
					commands: []string{
						"sentinel backfill               # All configured pairs",
						"sentinel backfill SOLUSDT -t 1h # One pair, one timeframe",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}

func newQuickstartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		Long:  "Step-by-step guide for new users.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Bybit Sentinel - Quick Start Guide")
			output.Println()

			steps := []struct {
				step  int
				title string
				desc  string
				cmd   string
			}{
				{
					step:  1,
					title: "Write the Config Template",
					desc:  "Creates ~/.config/sentinel/config.toml with every option commented.",
					cmd:   "sentinel config init",
				},
				{
					step:  2,
					title: "Pick Symbols and Timeframes",
					desc:  "Edit the [market] section, then check the result.",
					cmd:   "sentinel config validate",
				},
				{
					step:  3,
					title: "Check Data Coverage",
					desc:  "Confirms the exchange returns enough history for each pair.",
					cmd:   "sentinel backfill",
				},
				{
					step:  4,
					title: "Analyze a Market",
					desc:  "One-shot report of structure, zones and any active setup.",
					cmd:   "sentinel analyze BTCUSDT",
				},
				{
					step:  5,
					title: "Replay Before Going Live",
					desc:  "See what the engine would have emitted over recent history.",
					cmd:   "sentinel backtest BTCUSDT",
				},
				{
					step:  6,
					title: "Start the Watcher",
					desc:  "Streams candles and emits signals. Begin with --dry-run.",
					cmd:   "sentinel watch --dry-run",
				},
			}

			for _, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), s.step, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Notifications")
			output.Println()
			output.Printf("  %s - Telegram bot credentials\n", output.Cyan("TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID"))
			output.Printf("  %s - Generic JSON webhook\n", output.Cyan("WEBHOOK_URL"))
			output.Println("Set them in the environment or a .env file next to the binary.")
			output.Println()

			output.Bold("Getting Help")
			output.Println()
			output.Printf("  %s - List all commands\n", output.Cyan("sentinel commands"))
			output.Printf("  %s - Common workflows\n", output.Cyan("sentinel examples"))
			output.Printf("  %s - Help for any command\n", output.Cyan("sentinel help <command>"))
			output.Println()

			output.Bold("Notes")
			output.Println()
			output.Printf("  %s Signals are analysis, not orders. Nothing is ever traded.\n", output.Yellow("⚠"))
			output.Printf("  %s The engine needs 100 closed candles per pair before it evaluates.\n", output.Yellow("⚠"))

			return nil
		},
	}
}
