// Package analysis assembles the individual price-action detectors
// into one snapshot per candle window: zones, structure, setup,
// regime, structure events, sweeps, divergence and volume context.
// The signal engine, the analyze command and the backtester all read
// the same snapshot.
package analysis

import (
	"bybit-sentinel/internal/analysis/antichase"
	"bybit-sentinel/internal/analysis/events"
	"bybit-sentinel/internal/analysis/indicators"
	"bybit-sentinel/internal/analysis/levels"
	"bybit-sentinel/internal/analysis/liquidity"
	"bybit-sentinel/internal/analysis/patterns"
	"bybit-sentinel/internal/analysis/pivots"
	"bybit-sentinel/internal/analysis/regime"
	"bybit-sentinel/internal/analysis/scoring"
	"bybit-sentinel/internal/analysis/setups"
	"bybit-sentinel/internal/analysis/structure"
	"bybit-sentinel/internal/analysis/zones"
	"bybit-sentinel/internal/models"
)

// Config tunes the snapshot pipeline. Zero values fall back to the
// defaults of the owning detector packages.
type Config struct {
	PivotWindow          int
	ZoneLookback         int
	ZoneTolerance        float64 // fraction, not percent
	ZoneSLBuffer         float64 // fraction, not percent
	ATRPeriod            int
	SweepLookback        int
	StructureLookback    int
	MinZonesRequired     int
	VolumeSpikeThreshold float64
	AntiChaseMaxATR      float64
	AntiChaseMaxPct      float64
	DivergenceBonus      float64
}

func (c Config) withDefaults() Config {
	if c.PivotWindow <= 0 {
		c.PivotWindow = pivots.DefaultWindow
	}
	if c.ZoneLookback <= 0 {
		c.ZoneLookback = 200
	}
	if c.ZoneTolerance <= 0 {
		c.ZoneTolerance = 0.005
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = regime.DefaultATRPeriod
	}
	if c.SweepLookback <= 0 {
		c.SweepLookback = liquidity.DefaultLookback
	}
	if c.StructureLookback <= 0 {
		c.StructureLookback = 50
	}
	if c.VolumeSpikeThreshold <= 0 {
		c.VolumeSpikeThreshold = 1.5
	}
	if c.AntiChaseMaxATR <= 0 {
		c.AntiChaseMaxATR = 2.0
	}
	if c.AntiChaseMaxPct <= 0 {
		c.AntiChaseMaxPct = 2.0
	}
	if c.DivergenceBonus <= 0 {
		c.DivergenceBonus = 10.0
	}
	return c
}

// Snapshot is the full analytics readout over one candle window.
// Setup is nil when nothing actionable formed; the optional detectors
// stay nil when their inputs were insufficient or nothing was found.
type Snapshot struct {
	Structure      models.Structure
	Zones          models.ZoneSet
	PivotHighs     []int
	PivotLows      []int
	Setup          *models.Setup
	Regime         *models.Regime
	StructureEvent *models.StructureEvent
	Sweep          *models.Sweep
	Divergence     *models.Divergence
	Strength       models.CandleStrength
	VolumeRatio    float64
}

// Analyzer owns the configured detector instances and runs them in a
// fixed order over a candle window.
type Analyzer struct {
	cfg    Config
	zones  *zones.Builder
	setups *setups.Detector
	chase  *antichase.Evaluator
	scorer *scoring.Scorer
	levels *levels.Calculator
}

// NewAnalyzer builds an Analyzer from the pipeline configuration.
func NewAnalyzer(cfg Config) *Analyzer {
	cfg = cfg.withDefaults()
	return &Analyzer{
		cfg:    cfg,
		zones:  zones.NewBuilder(cfg.ZoneLookback, cfg.PivotWindow, cfg.ZoneTolerance),
		setups: setups.NewDetector(cfg.MinZonesRequired, cfg.VolumeSpikeThreshold),
		chase:  antichase.NewEvaluator(cfg.AntiChaseMaxATR, cfg.AntiChaseMaxPct),
		scorer: scoring.NewScorer(cfg.DivergenceBonus),
		levels: levels.NewCalculator(cfg.ZoneSLBuffer),
	}
}

// Config returns the effective configuration after defaulting.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze runs the detectors over the window and returns the snapshot.
// The window is read only; re-running over the identical window yields
// the identical snapshot.
func (a *Analyzer) Analyze(candles []models.Candle) Snapshot {
	snap := Snapshot{
		Structure:   models.StructureNeutral,
		VolumeRatio: setups.VolumeRatio(candles),
	}
	if len(candles) == 0 {
		return snap
	}

	snap.Structure = structure.Analyze(tail(candles, a.cfg.StructureLookback), a.cfg.PivotWindow)
	snap.Zones = a.zones.Build(candles)
	snap.PivotHighs = pivots.Highs(candles, a.cfg.PivotWindow)
	snap.PivotLows = pivots.Lows(candles, a.cfg.PivotWindow)
	snap.Strength = patterns.CandleStrength(candles[len(candles)-1])
	snap.Setup = a.setups.Detect(candles, snap.Zones)

	if r, err := regime.DetectMarketRegime(candles, snap.Structure); err == nil {
		snap.Regime = &r
	}
	snap.StructureEvent = events.DetectStructureEvents(candles, snap.Structure, snap.PivotHighs, snap.PivotLows)
	snap.Sweep = liquidity.DetectSweep(candles, snap.PivotHighs, snap.PivotLows, snap.Zones, a.cfg.SweepLookback)
	snap.Divergence = indicators.DetectRSIDivergence(candles, snap.PivotHighs, snap.PivotLows)

	return snap
}

// StructureOf classifies a higher-timeframe window for bias
// aggregation, using the same lookback and pivot window as the
// snapshot pipeline.
func (a *Analyzer) StructureOf(candles []models.Candle) models.Structure {
	return structure.Analyze(tail(candles, a.cfg.StructureLookback), a.cfg.PivotWindow)
}

// Score runs the configured scorer over a snapshot's setup.
func (a *Analyzer) Score(setup *models.Setup, alignment models.HTFAlignment, strength models.CandleStrength, divergence *models.Divergence) models.ScoreBreakdown {
	return a.scorer.Score(setup, alignment, strength, divergence)
}

// Levels derives zone-anchored levels for a snapshot's setup.
func (a *Analyzer) Levels(setup *models.Setup) (models.Levels, error) {
	return a.levels.Calculate(setup)
}

// ChaseRisk evaluates entry-timing risk for a snapshot's setup.
func (a *Analyzer) ChaseRisk(candles []models.Candle, setup *models.Setup, event *models.StructureEvent) models.ChaseEval {
	return a.chase.Evaluate(candles, setup, event)
}

func tail(candles []models.Candle, n int) []models.Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
