package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bybit-sentinel/internal/analysis"
	"bybit-sentinel/internal/analysis/structure"
	"bybit-sentinel/internal/engine"
	"bybit-sentinel/internal/exchange/bybit"
	"bybit-sentinel/internal/models"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Run the analytics pipeline once and print the snapshot",
		Long: `Fetch recent candles over REST, run the full price-action pipeline
(zones, structure, regime, setup detection, scoring, levels) and print
the result. Nothing is persisted and no signal is delivered.`,
		Example: `  sentinel analyze BTCUSDT
  sentinel analyze ETHUSDT --timeframe 4h
  sentinel analyze BTCUSDT --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			symbol := strings.ToUpper(args[0])
			tfFlag, _ := cmd.Flags().GetString("timeframe")
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				limit = cfg.Exchange.BackfillLimit
			}

			tf, err := models.ParseTimeframe(tfFlag)
			if err != nil {
				output.Error("Invalid timeframe %q: %v", tfFlag, err)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			rest := bybit.NewRESTClient(cfg.Exchange, app.Logger)
			candles, err := rest.Backfill(ctx, symbol, tf, limit, time.Time{}, time.Time{})
			if err != nil {
				output.Error("Failed to fetch candles: %v", err)
				return err
			}
			closed := closedCandles(candles)
			if len(closed) < 100 {
				output.Warning("Only %d closed candles available; the pipeline needs 100", len(closed))
			}

			analyzer := analysis.NewAnalyzer(engine.AnalysisConfig(cfg))
			snap := analyzer.Analyze(closed)

			structures := make(map[models.Timeframe]models.Structure, len(cfg.Market.HTFTimeframes))
			for _, htf := range cfg.Market.HTFTimeframes {
				htfCandles, err := rest.Backfill(ctx, symbol, htf, limit, time.Time{}, time.Time{})
				if err != nil {
					output.Warning("Skipping %s bias: %v", htf, err)
					continue
				}
				if hc := closedCandles(htfCandles); len(hc) > 0 {
					structures[htf] = analyzer.StructureOf(hc)
				}
			}
			bias := structure.DetermineHTFBias(structures, cfg.HTFWeights())

			report := buildAnalysisReport(analyzer, snap, bias, symbol, tf, closed)
			if output.IsJSON() {
				return output.JSON(report)
			}
			displayAnalysis(output, report)
			return nil
		},
	}

	cmd.Flags().StringP("timeframe", "t", "1h", "timeframe to analyze (1m..1w)")
	cmd.Flags().IntP("limit", "l", 0, "candles to fetch (default: exchange backfill limit)")

	return cmd
}

// AnalysisReport is the one-shot snapshot in output form.
type AnalysisReport struct {
	Symbol      string                 `json:"symbol"`
	Timeframe   models.Timeframe       `json:"timeframe"`
	AsOf        time.Time              `json:"as_of"`
	LastClose   float64                `json:"last_close"`
	ChangePct   float64                `json:"change_pct"`
	Structure   models.Structure       `json:"structure"`
	Regime      *models.Regime         `json:"regime,omitempty"`
	HTFBias     models.HTFBias         `json:"htf_bias"`
	Zones       models.ZoneSet         `json:"zones"`
	Event       *models.StructureEvent `json:"structure_event,omitempty"`
	Sweep       *models.Sweep          `json:"sweep,omitempty"`
	Divergence  *models.Divergence     `json:"divergence,omitempty"`
	VolumeRatio float64                `json:"volume_ratio"`
	Setup       *models.Setup          `json:"setup,omitempty"`
	Score       *models.ScoreBreakdown `json:"score,omitempty"`
	Levels      *models.Levels         `json:"levels,omitempty"`
	Chase       *models.ChaseEval      `json:"chase,omitempty"`
}

func buildAnalysisReport(analyzer *analysis.Analyzer, snap analysis.Snapshot, bias models.HTFBias, symbol string, tf models.Timeframe, closed []models.Candle) AnalysisReport {
	report := AnalysisReport{
		Symbol:      symbol,
		Timeframe:   tf,
		Structure:   snap.Structure,
		Regime:      snap.Regime,
		HTFBias:     bias,
		Zones:       snap.Zones,
		Event:       snap.StructureEvent,
		Sweep:       snap.Sweep,
		Divergence:  snap.Divergence,
		VolumeRatio: snap.VolumeRatio,
		Setup:       snap.Setup,
	}
	if n := len(closed); n > 0 {
		last := closed[n-1]
		report.AsOf = last.CloseTime
		report.LastClose = last.Close
		if n > 1 && closed[n-2].Close != 0 {
			report.ChangePct = (last.Close - closed[n-2].Close) / closed[n-2].Close * 100
		}
	}

	if snap.Setup != nil {
		alignment := structure.CheckAlignment(snap.Setup.Side, bias)
		score := analyzer.Score(snap.Setup, alignment, snap.Strength, snap.Divergence)
		report.Score = &score

		if lv, err := analyzer.Levels(snap.Setup); err == nil {
			report.Levels = &lv
		}
		chase := analyzer.ChaseRisk(closed, snap.Setup, snap.StructureEvent)
		report.Chase = &chase
	}
	return report
}

func displayAnalysis(output *Output, r AnalysisReport) {
	output.Bold("%s %s", r.Symbol, r.Timeframe)
	output.Printf("  Close: %s (%s)  as of %s\n",
		FormatPrice(r.LastClose), output.PctText(r.ChangePct), FormatDateTime(r.AsOf))
	output.Printf("  Structure: %s   Bias: %s (%.2f)", r.Structure, output.BiasText(r.HTFBias.Bias), r.HTFBias.Score)
	if r.Regime != nil {
		output.Printf("   Regime: %s (%.0f%%)", r.Regime.Type, r.Regime.Confidence*100)
	}
	output.Println()
	output.Printf("  Volume: %s of 20-bar average\n", FormatRatio(r.VolumeRatio))

	if r.Event != nil {
		output.Printf("  Event: %s %s at %s\n", r.Event.Type, r.Event.Direction, FormatPrice(r.Event.Price))
	}
	if r.Sweep != nil {
		output.Printf("  Sweep: %s of %s at %s (strength %.2f)\n", r.Sweep.Type, r.Sweep.Source, FormatPrice(r.Sweep.Reference), r.Sweep.Strength)
	}
	if r.Divergence != nil {
		output.Printf("  Divergence: %s %s\n", r.Divergence.Type, r.Divergence.Direction)
	}
	output.Println()

	displayZones(output, r.Zones)

	if r.Setup == nil {
		output.Dim("No actionable setup on the last close.")
		return
	}

	output.Bold("Setup")
	output.Printf("  %s  %s\n", output.SideText(r.Setup.Side), r.Setup.Name)
	if r.Setup.Pattern != nil {
		output.Printf("  Pattern: %s (strength %.2f)\n", r.Setup.Pattern.Name, r.Setup.Pattern.Strength)
	}
	if r.Score != nil {
		output.Printf("  Score: %s  (htf %.1f, setup %.1f, candle %.1f, volume %.1f, divergence %.1f)\n",
			output.ScoreText(r.Score.Total), r.Score.HTF, r.Score.Setup, r.Score.Candle, r.Score.Volume, r.Score.Divergence)
	}
	if r.Levels != nil {
		tp2 := "-"
		if r.Levels.TakeProfit2 != 0 {
			tp2 = FormatPrice(r.Levels.TakeProfit2) + " (" + FormatRiskReward(r.Levels.RiskReward2) + ")"
		}
		output.Printf("  Entry %s  SL %s  TP1 %s (%s)  TP2 %s\n",
			FormatPrice(r.Levels.Entry), FormatPrice(r.Levels.StopLoss),
			FormatPrice(r.Levels.TakeProfit1), FormatRiskReward(r.Levels.RiskReward1), tp2)
	}
	if r.Chase != nil {
		line := "  Chase: " + output.ChaseText(r.Chase.Decision)
		if r.Chase.Reason != "" {
			line += " (" + r.Chase.Reason + ")"
		}
		output.Printf("%s\n", line)
		if r.Chase.Caution() {
			output.Warning("move already extended, size down or wait for a pullback")
		}
	}
}

func displayZones(output *Output, zones models.ZoneSet) {
	output.Bold("Zones (%d support, %d resistance)", len(zones.Support), len(zones.Resistance))
	if zones.Count() == 0 {
		output.Dim("  none in the lookback window")
		output.Println()
		return
	}

	table := NewTable(output, "Type", "Center", "Band", "Touches")
	for _, z := range zones.All() {
		zoneType := string(z.Type)
		if z.Type == models.ZoneSupport {
			zoneType = output.Green(zoneType)
		} else {
			zoneType = output.Red(zoneType)
		}
		table.AddRow(
			zoneType,
			FormatPrice(z.Center),
			FormatZoneBand(z.Center, z.Lower, z.Upper),
			strconv.Itoa(z.Touches),
		)
	}
	table.Render()
	output.Println()
}

func closedCandles(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if c.IsClosed {
			out = append(out, c)
		}
	}
	return out
}
