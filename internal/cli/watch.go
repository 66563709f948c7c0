package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/engine"
	"bybit-sentinel/internal/exchange/bybit"
	"bybit-sentinel/internal/ingest"
	"bybit-sentinel/internal/market"
	"bybit-sentinel/internal/metrics"
	"bybit-sentinel/internal/notify"
	"bybit-sentinel/internal/stream"
)

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the live signal pipeline",
		Long: `Backfill candle history over REST, subscribe to the kline stream and
evaluate every candle close. Emitted signals go to the configured
notification channels and the local signal archive.

Press Ctrl+C to stop.`,
		Example: `  sentinel watch
  sentinel watch --dry-run
  sentinel watch --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				cfg.Signals.DryRun = true
			}

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open signal store: %v", err)
				return err
			}
			defer st.Close()

			var sink notify.Notifier
			if cfg.Signals.DryRun {
				sink = notify.NewLogNotifier(app.Logger)
			} else {
				sink = notify.NewMultiNotifier(cfg.Notifications)
			}

			mkt := market.NewStore()
			hub := stream.NewHub()
			eng := engine.New(cfg, mkt, st, st, sink, app.Logger)
			hub.RegisterConsumer(eng)

			rest := bybit.NewRESTClient(cfg.Exchange, app.Logger)
			ws := bybit.NewWSClient(cfg.Exchange, rest, app.Logger)
			ing := ingest.New(cfg, rest, ws, mkt, hub, app.Logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.Enabled {
				srv := metrics.NewServer(cfg.Metrics.ListenAddr)
				srv.Start(app.Logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			printWatchBanner(output, app)

			hub.Start(ctx)
			defer hub.Stop()
			eng.Start(ctx)
			defer eng.Stop()

			if err := ing.Run(ctx); err != nil {
				output.Error("Pipeline failed: %v", err)
				return err
			}

			output.Println()
			output.Success("Shut down cleanly")
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "log signals instead of delivering them")

	return cmd
}

func printWatchBanner(output *Output, app *App) {
	cfg := app.Config

	output.Bold("Bybit Sentinel v%s", Version)
	output.Printf("  Symbols:     %s\n", strings.Join(cfg.Market.Symbols, ", "))
	output.Printf("  Timeframes:  %s\n", joinTimeframes(cfg.Market.Timeframes))
	output.Printf("  Entry on:    %s\n", joinTimeframes(cfg.Market.EntryTimeframes))
	output.Printf("  HTF bias:    %s\n", joinTimeframes(cfg.Market.HTFTimeframes))
	output.Printf("  Stages:      %s\n", strings.Join(cfg.Signals.StagesEnabled, ", "))
	output.Printf("  Mode:        %s\n", cfg.Signals.Mode)
	if cfg.Signals.DryRun {
		output.Warning("  Dry run: signals are logged, not delivered")
	}
	if cfg.Metrics.Enabled {
		output.Dim("  Metrics on %s/metrics", cfg.Metrics.ListenAddr)
	}
	output.Dim("  Press Ctrl+C to stop")
	output.Println()
}
