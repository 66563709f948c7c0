package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/config"
)

// newConfigCmd manages the configuration directory and file.
func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented config template",
		Long:  "Write a commented config.toml template into the config directory. Fails if one already exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			configDir, _ := cmd.Flags().GetString("config")
			path, err := config.WriteTemplate(configDir)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("Wrote %s", path)
			output.Println("Edit it, then run `sentinel config validate`.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration directory path",
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
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Market")
	output.Printf("  Symbols:          %s\n", strings.Join(cfg.Market.Symbols, ", "))
	output.Printf("  Timeframes:       %s\n", joinTimeframes(cfg.Market.Timeframes))
	output.Printf("  Entry timeframes: %s\n", joinTimeframes(cfg.Market.EntryTimeframes))
	output.Printf("  HTF timeframes:   %s\n", joinTimeframes(cfg.Market.HTFTimeframes))
	output.Println()

	output.Bold("Signals")
	output.Printf("  Mode:             %s\n", cfg.Signals.Mode)
	output.Printf("  Stages:           %s\n", strings.Join(cfg.Signals.StagesEnabled, ", "))
	output.Printf("  Setup threshold:  %.0f\n", cfg.SetupThreshold())
	output.Printf("  Entry threshold:  %.0f\n", cfg.EntryThreshold())
	output.Printf("  Min zones:        %d\n", cfg.Signals.MinZonesRequired)
	output.Printf("  Min R:R:          %.1f\n", cfg.Signals.MinRR)
	output.Printf("  Volume spike:     %s\n", FormatRatio(cfg.Signals.VolumeSpikeThreshold))
	output.Printf("  Volume required:  %v\n", cfg.Signals.RequireVolumeConfirmation)
	output.Printf("  Cooldown:         %d min\n", cfg.Signals.CooldownMinutes)
	output.Printf("  Dry run:          %v\n", cfg.Signals.DryRun)
	output.Println()

	output.Bold("Analysis")
	output.Printf("  Pivot window:     %d\n", cfg.Analysis.PivotWindow)
	output.Printf("  Zone lookback:    %d  (tolerance %.2f%%)\n", cfg.Analysis.ZoneLookback, cfg.Analysis.ZoneTolerancePct)
	output.Printf("  ATR period:       %d\n", cfg.Analysis.ATRPeriod)
	output.Printf("  Anti-chase:       %.1f ATR / %.1f%%\n", cfg.Analysis.AntiChaseMaxATR, cfg.Analysis.AntiChaseMaxPct)
	output.Printf("  HTF weights:      1d %.2f, 4h %.2f\n", cfg.Analysis.HTFWeight1d, cfg.Analysis.HTFWeight4h)
	output.Println()

	output.Bold("Exchange")
	output.Printf("  REST:             %s\n", cfg.Exchange.RESTURL)
	output.Printf("  WebSocket:        %s\n", cfg.Exchange.WSURL)
	output.Printf("  Category:         %s\n", cfg.Exchange.Category)
	output.Printf("  Backfill limit:   %d\n", cfg.Exchange.BackfillLimit)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:             %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Terminal:         %v\n", cfg.Notifications.Terminal)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)
	output.Println()

	output.Bold("Metrics")
	output.Printf("  Enabled:          %v\n", cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		output.Printf("  Listen:           %s\n", cfg.Metrics.ListenAddr)
	}
	output.Println()

	output.Bold("Log")
	output.Printf("  Level:            %s\n", cfg.Log.Level)
	output.Printf("  Console:          %v\n", cfg.Log.Console)
	output.Printf("  File:             %v", cfg.Log.File)
	if cfg.Log.File {
		output.Printf("  (%s)", cfg.Log.FilePath)
	}
	output.Println()
}
