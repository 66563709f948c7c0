package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/backtest"
	"bybit-sentinel/internal/exchange/bybit"
	"bybit-sentinel/internal/models"
)

// backtestReport is the JSON shape of a finished replay.
type backtestReport struct {
	Symbol      string           `json:"symbol"`
	Timeframe   models.Timeframe `json:"timeframe"`
	Candles     int              `json:"candles"`
	Evaluations int              `json:"evaluations"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Signals     []models.Signal  `json:"signals"`
	Skips       map[string]int   `json:"skips"`
}

// newBacktestCmd replays fetched history through the evaluation engine.
func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest <symbol>",
		Short: "Replay history through the signal engine",
		Long: `Fetch historical candles and replay them through the evaluation
engine with in-memory stores. Reports every signal the engine would
have emitted over the window, plus a per-reason count of skipped
evaluations. Nothing is notified or persisted.`,
		Example: `  sentinel backtest BTCUSDT
  sentinel backtest ETHUSDT -t 4h --limit 500
  sentinel backtest BTCUSDT --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			tfArg, _ := cmd.Flags().GetString("timeframe")
			limit, _ := cmd.Flags().GetInt("limit")

			tf, err := models.ParseTimeframe(tfArg)
			if err != nil {
				output.Error("Invalid timeframe: %v", err)
				return err
			}

			cfg := app.Config
			rest := bybit.NewRESTClient(cfg.Exchange, app.Logger)

			if !output.IsJSON() {
				output.Info("Fetching %d %s candles for %s...", limit, tf, symbol)
			}
			candles, err := rest.Backfill(ctx, symbol, tf, limit, time.Time{}, time.Time{})
			if err != nil {
				output.Error("Failed to fetch %s history: %v", symbol, err)
				return err
			}

			htf := make(map[models.Timeframe][]models.Candle, len(cfg.Market.HTFTimeframes))
			for _, h := range cfg.Market.HTFTimeframes {
				if h == tf {
					continue
				}
				series, err := rest.Backfill(ctx, symbol, h, cfg.Exchange.BackfillLimit, time.Time{}, time.Time{})
				if err != nil {
					output.Warning("Skipping %s history: %v", h, err)
					continue
				}
				htf[h] = series
			}

			res, err := backtest.New(cfg, app.Logger).Run(ctx, symbol, tf, candles, htf)
			if err != nil {
				output.Error("Replay failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(backtestReport{
					Symbol:      res.Symbol,
					Timeframe:   res.Timeframe,
					Candles:     res.Candles,
					Evaluations: res.Evaluations,
					Start:       res.Start,
					End:         res.End,
					Signals:     res.Signals,
					Skips:       res.Skips,
				})
			}

			displayBacktest(output, res)
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "1h", "Entry timeframe to replay")
	cmd.Flags().IntP("limit", "l", 1000, "Number of candles to fetch, including warmup")

	return cmd
}

func displayBacktest(output *Output, res *backtest.Result) {
	output.Println()
	output.Bold("Backtest %s %s", res.Symbol, res.Timeframe)
	output.Printf("  Window: %s to %s\n", FormatDateTime(res.Start), FormatDateTime(res.End))
	output.Printf("  Candles: %d   Evaluations: %d   Signals: %d\n", res.Candles, res.Evaluations, len(res.Signals))
	output.Println()

	if len(res.Signals) > 0 {
		table := NewTable(output, "Time", "Stage", "Side", "Score", "Entry", "Stop", "TP1", "R:R", "Setup")
		for _, sig := range res.Signals {
			table.AddRow(
				FormatDateTime(sig.Timestamp),
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
		output.Println()
	} else {
		output.Info("No signals over the replayed window.")
		output.Println()
	}

	lines := res.SkipLines()
	if len(lines) == 0 {
		return
	}
	output.Bold("Skipped evaluations")
	for _, line := range lines {
		output.Printf("  %-20s %d\n", line.Reason, line.Count)
	}
}
