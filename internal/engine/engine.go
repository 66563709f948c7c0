// Package engine evaluates candle closes against the analytics
// pipeline and decides whether a signal leaves the process. It owns
// the gate sequence, the cooldown checks and the intrabar throttle;
// everything upstream (ingestion) and downstream (sinks, stores) is
// an interface.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bybit-sentinel/internal/analysis"
	"bybit-sentinel/internal/analysis/structure"
	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/logging"
	"bybit-sentinel/internal/market"
	"bybit-sentinel/internal/metrics"
	"bybit-sentinel/internal/models"
	"bybit-sentinel/internal/notify"
	"bybit-sentinel/internal/store"
	"bybit-sentinel/internal/stream"
)

const (
	// minClosedCandles is the smallest window the analytics run on.
	minClosedCandles = 100

	// intrabarMinInterval throttles forming-candle evaluations per
	// symbol and timeframe.
	intrabarMinInterval = 10 * time.Second

	// cooldownCleanupInterval drives the expired-cooldown sweep.
	cooldownCleanupInterval = time.Hour

	// mapSweepInterval drives the dedup and throttle map cleanup.
	mapSweepInterval = 10 * time.Minute
)

// Engine consumes candle events, writes them to the market store and
// runs the evaluation pipeline on entry timeframes.
type Engine struct {
	cfg       *config.Config
	analyzer  *analysis.Analyzer
	market    *market.Store
	signals   store.SignalStore
	cooldowns store.CooldownStore
	sink      notify.Notifier
	logger    zerolog.Logger
	clock     func() time.Time
	onSkip    func(reason string)

	entryTFs map[models.Timeframe]bool

	mu           sync.Mutex
	setupSeen    map[string]time.Time // dedup key -> expiry
	lastIntrabar map[string]time.Time // symbol|tf -> last forming evaluation
	runCtx       context.Context

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ stream.Consumer = (*Engine)(nil)

// New wires an engine. The market store must already hold (or later
// receive) the candles the pipeline reads.
func New(cfg *config.Config, mkt *market.Store, signals store.SignalStore, cooldowns store.CooldownStore, sink notify.Notifier, logger zerolog.Logger) *Engine {
	entryTFs := make(map[models.Timeframe]bool, len(cfg.Market.EntryTimeframes))
	for _, tf := range cfg.Market.EntryTimeframes {
		entryTFs[tf] = true
	}
	return &Engine{
		cfg:          cfg,
		analyzer:     analysis.NewAnalyzer(AnalysisConfig(cfg)),
		market:       mkt,
		signals:      signals,
		cooldowns:    cooldowns,
		sink:         sink,
		logger:       logger.With().Str("component", "engine").Logger(),
		clock:        time.Now,
		entryTFs:     entryTFs,
		setupSeen:    make(map[string]time.Time),
		lastIntrabar: make(map[string]time.Time),
	}
}

// AnalysisConfig maps application configuration onto the analytics
// pipeline settings.
func AnalysisConfig(cfg *config.Config) analysis.Config {
	return analysis.Config{
		PivotWindow:          cfg.Analysis.PivotWindow,
		ZoneLookback:         cfg.Analysis.ZoneLookback,
		ZoneTolerance:        cfg.Analysis.ZoneTolerance(),
		ZoneSLBuffer:         cfg.Analysis.ZoneSLBuffer(),
		ATRPeriod:            cfg.Analysis.ATRPeriod,
		SweepLookback:        cfg.Analysis.SweepLookback,
		StructureLookback:    cfg.Analysis.StructureLookback,
		MinZonesRequired:     cfg.Signals.MinZonesRequired,
		VolumeSpikeThreshold: cfg.Signals.VolumeSpikeThreshold,
		AntiChaseMaxATR:      cfg.Analysis.AntiChaseMaxATR,
		AntiChaseMaxPct:      cfg.Analysis.AntiChaseMaxPct,
		DivergenceBonus:      cfg.Analysis.RSIDivergenceBonus,
	}
}

// SetClock overrides the engine clock. Backtests use this to run the
// dedup and throttle state on candle time instead of wall time.
func (e *Engine) SetClock(clock func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

func (e *Engine) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock()
}

// SetSkipObserver registers a callback invoked with the reason of every
// recorded skip. Set it before events start flowing.
func (e *Engine) SetSkipObserver(fn func(reason string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSkip = fn
}

// Start launches the maintenance loop: hourly expired-cooldown sweeps
// and periodic cleanup of the dedup and throttle maps. Call before the
// hub starts delivering events.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.runCtx = runCtx
	e.mu.Unlock()
	e.cancel = cancel

	e.wg.Add(1)
	go e.maintenanceLoop(runCtx)
}

// Stop cancels the maintenance loop and waits for it to exit. Pending
// evaluations finish on their own goroutines before the hub is stopped.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) maintenanceLoop(ctx context.Context) {
	defer e.wg.Done()

	cleanup := time.NewTicker(cooldownCleanupInterval)
	defer cleanup.Stop()
	sweep := time.NewTicker(mapSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			removed, err := e.cooldowns.CleanupExpired(ctx)
			if err != nil {
				e.logger.Warn().Err(err).Msg("cooldown cleanup failed")
				continue
			}
			if removed > 0 {
				e.logger.Info().Int("removed", removed).Msg("expired cooldowns removed")
				metrics.AddCooldownsPurged(int64(removed))
			}
		case <-sweep.C:
			e.sweepMaps()
		}
	}
}

// sweepMaps drops expired dedup entries and throttle timestamps that
// no longer influence any decision.
func (e *Engine) sweepMaps() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	for key, expiry := range e.setupSeen {
		if now.After(expiry) {
			delete(e.setupSeen, key)
		}
	}
	for key, last := range e.lastIntrabar {
		if now.Sub(last) > time.Hour {
			delete(e.lastIntrabar, key)
		}
	}
}

// Symbols implements stream.Consumer.
func (e *Engine) Symbols() []string {
	return e.cfg.Market.Symbols
}

// OnCandle implements stream.Consumer. Closed candles are upserted and
// evaluated; forming candles update the overlay and may trigger a
// throttled intrabar evaluation. The hub calls this from one goroutine
// per consumer, so the store write and the evaluation that reads it
// are never interleaved with the next event for the same pair.
func (e *Engine) OnCandle(ev stream.CandleEvent) {
	ctx := e.evalCtx()
	log := logging.WithTimeframe(logging.WithSymbol(e.logger, ev.Symbol), ev.Timeframe)

	if ev.Candle.IsClosed {
		if err := e.market.UpsertClosed(ev.Symbol, ev.Timeframe, ev.Candle); err != nil {
			log.Warn().Err(err).Msg("rejected closed candle")
			return
		}
		metrics.IncCandleIngested(ev.Symbol, ev.Timeframe.String(), "stream")
		logging.LogCandleClose(log, ev.Symbol, ev.Timeframe, ev.Candle)
		if e.entryTFs[ev.Timeframe] {
			e.EvaluateClose(ctx, ev.Symbol, ev.Timeframe)
		}
		return
	}

	if err := e.market.SetForming(ev.Symbol, ev.Timeframe, ev.Candle); err != nil {
		log.Warn().Err(err).Msg("rejected forming candle")
		return
	}
	if e.entryTFs[ev.Timeframe] {
		e.EvaluateForming(ctx, ev.Symbol, ev.Timeframe)
	}
}

func (e *Engine) evalCtx() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

// htfBias classifies every configured higher timeframe for the symbol
// and aggregates the weighted bias.
func (e *Engine) htfBias(symbol string) models.HTFBias {
	structures := make(map[models.Timeframe]models.Structure, len(e.cfg.Market.HTFTimeframes))
	for _, tf := range e.cfg.Market.HTFTimeframes {
		candles := e.market.Closed(symbol, tf)
		if len(candles) == 0 {
			continue
		}
		structures[tf] = e.analyzer.StructureOf(candles)
	}
	return structure.DetermineHTFBias(structures, e.cfg.HTFWeights())
}
