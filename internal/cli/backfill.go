package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/exchange/bybit"
	"bybit-sentinel/internal/models"
)

func newBackfillCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill [symbols...]",
		Short: "Fetch candle history and check analysis readiness",
		Long: `Fetch candle history over REST for the given symbols (default: the
configured symbol list) and report how much of the analytics warm-up
each pair covers. The watch command runs the same backfill at startup;
this is the standalone connectivity and coverage check.`,
		Example: `  sentinel backfill
  sentinel backfill BTCUSDT
  sentinel backfill SOLUSDT --timeframe 4h --limit 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			symbols := cfg.Market.Symbols
			if len(args) > 0 {
				symbols = make([]string, len(args))
				for i, s := range args {
					symbols[i] = strings.ToUpper(s)
				}
			}

			timeframes := cfg.Market.Timeframes
			if tfFlag, _ := cmd.Flags().GetString("timeframe"); tfFlag != "" {
				tf, err := models.ParseTimeframe(tfFlag)
				if err != nil {
					output.Error("Invalid timeframe %q: %v", tfFlag, err)
					return err
				}
				timeframes = []models.Timeframe{tf}
			}

			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				limit = cfg.Exchange.BackfillLimit
			}

			ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
			defer cancel()

			rest := bybit.NewRESTClient(cfg.Exchange, app.Logger)

			type pairResult struct {
				Symbol    string           `json:"symbol"`
				Timeframe models.Timeframe `json:"timeframe"`
				Candles   int              `json:"candles"`
				From      time.Time        `json:"from,omitempty"`
				To        time.Time        `json:"to,omitempty"`
				Ready     bool             `json:"ready"`
				Error     string           `json:"error,omitempty"`
			}

			var results []pairResult
			failures := 0
			for _, symbol := range symbols {
				for _, tf := range timeframes {
					res := pairResult{Symbol: symbol, Timeframe: tf}
					candles, err := rest.Backfill(ctx, symbol, tf, limit, time.Time{}, time.Time{})
					if err != nil {
						res.Error = err.Error()
						failures++
						results = append(results, res)
						continue
					}
					closed := closedCandles(candles)
					res.Candles = len(closed)
					res.Ready = len(closed) >= 100
					if len(closed) > 0 {
						res.From = closed[0].OpenTime
						res.To = closed[len(closed)-1].CloseTime
					}
					results = append(results, res)
				}
			}

			if output.IsJSON() {
				return output.JSON(results)
			}

			output.Bold("Backfill coverage (limit %d)", limit)
			table := NewTable(output, "Symbol", "TF", "Candles", "From", "To", "Ready")
			for _, res := range results {
				if res.Error != "" {
					table.AddRow(res.Symbol, res.Timeframe.String(), "-", "-", "-", output.Red("error: "+res.Error))
					continue
				}
				ready := output.Green("yes")
				if !res.Ready {
					ready = output.Yellow("warming up")
				}
				table.AddRow(
					res.Symbol,
					res.Timeframe.String(),
					strconv.Itoa(res.Candles),
					FormatDateTime(res.From),
					FormatDateTime(res.To),
					ready,
				)
			}
			table.Render()

			if failures > 0 {
				output.Println()
				output.Error("%d pair(s) failed to backfill", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "", "fetch a single timeframe instead of the configured set")
	cmd.Flags().IntP("limit", "l", 0, "candles to fetch per pair (default: exchange backfill limit)")

	return cmd
}
