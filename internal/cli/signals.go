package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/models"
	"bybit-sentinel/internal/store"
)

// newSignalsCmd lists signals persisted by the watch pipeline.
func newSignalsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List recorded signals",
		Long:  "List signals recorded by the watch pipeline, newest first.",
		Example: `  sentinel signals
  sentinel signals --symbol BTCUSDT --timeframe 1h
  sentinel signals --stage ENTRY --side LONG --since 24h
  sentinel signals --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			tfArg, _ := cmd.Flags().GetString("timeframe")
			stageArg, _ := cmd.Flags().GetString("stage")
			sideArg, _ := cmd.Flags().GetString("side")
			since, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := store.SignalFilter{
				Symbol: strings.ToUpper(symbol),
				Limit:  limit,
			}
			if tfArg != "" {
				tf, err := models.ParseTimeframe(tfArg)
				if err != nil {
					output.Error("Invalid timeframe: %v", err)
					return err
				}
				filter.Timeframe = tf
			}
			if stageArg != "" {
				filter.Stage = models.SignalStage(strings.ToUpper(stageArg))
			}
			if sideArg != "" {
				filter.Side = models.Side(strings.ToUpper(sideArg))
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			st, err := app.openStore()
			if err != nil {
				output.Error("Failed to open signal store: %v", err)
				return err
			}
			defer st.Close()

			signals, err := st.ListSignals(ctx, filter)
			if err != nil {
				output.Error("Failed to list signals: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(signals)
			}

			if len(signals) == 0 {
				output.Info("No signals recorded yet. Run `sentinel watch` to start the pipeline.")
				return nil
			}

			output.Bold("Signals (%d)", len(signals))
			output.Println()

			table := NewTable(output, "Time", "Symbol", "TF", "Stage", "Side", "Score", "Entry", "Stop", "TP1", "R:R", "Setup")
			for _, sig := range signals {
				table.AddRow(
					FormatDateTime(sig.Timestamp),
					sig.Symbol,
					sig.Timeframe.String(),
					output.StageText(sig.Stage),
					output.SideText(sig.Side),
					output.ScoreText(sig.Score),
					FormatPrice(sig.Levels.Entry),
					FormatPrice(sig.Levels.StopLoss),
					FormatPrice(sig.Levels.TakeProfit1),
					FormatRiskReward(sig.Levels.RiskReward1),
					TruncateString(sig.Setup.Name, 28),
				)
			}
			table.Render()

			return nil
		},
	}

	cmd.Flags().String("symbol", "", "Filter by symbol")
	cmd.Flags().StringP("timeframe", "t", "", "Filter by timeframe (15m, 1h, 4h, 1d)")
	cmd.Flags().String("stage", "", "Filter by stage (SETUP, ENTRY)")
	cmd.Flags().String("side", "", "Filter by side (LONG, SHORT)")
	cmd.Flags().Duration("since", 0, "Only signals newer than this age (e.g. 24h)")
	cmd.Flags().IntP("limit", "l", 20, "Maximum number of signals to show")

	return cmd
}
