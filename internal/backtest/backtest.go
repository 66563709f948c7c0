// Package backtest replays historical candles through the evaluation
// engine with in-memory stores and a capture sink, so gate behavior
// and signal output can be inspected without touching the live
// pipeline.
package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/engine"
	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/market"
	"bybit-sentinel/internal/models"
	"bybit-sentinel/internal/notify"
	"bybit-sentinel/internal/store"
)

// warmupCandles is how much history is seeded before the first
// evaluation. It matches the minimum window the analytics run on, so
// the replay does not open with a wall of insufficient-data skips.
const warmupCandles = 100

// Result summarizes one replay.
type Result struct {
	Symbol      string
	Timeframe   models.Timeframe
	Candles     int
	Evaluations int
	Signals     []models.Signal
	Skips       map[string]int
	Start       time.Time
	End         time.Time
}

// SkipLine is one row of the per-reason summary.
type SkipLine struct {
	Reason string
	Count  int
}

// SkipLines returns the skip counts in gate order, dropping reasons
// that never fired.
func (r *Result) SkipLines() []SkipLine {
	lines := make([]SkipLine, 0, len(r.Skips))
	for _, reason := range engine.SkipReasons {
		if n := r.Skips[reason]; n > 0 {
			lines = append(lines, SkipLine{Reason: reason, Count: n})
		}
	}
	return lines
}

// captureSink collects every delivered signal.
type captureSink struct {
	mu      sync.Mutex
	signals []models.Signal
}

func (s *captureSink) SendSignal(_ context.Context, sig models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *captureSink) collected() []models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

var _ notify.Notifier = (*captureSink)(nil)

// Runner replays candle history through a fresh engine per run.
type Runner struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New builds a runner over the given configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger.With().Str("component", "backtest").Logger()}
}

// Run replays the closed candles of one entry timeframe in order.
// Higher-timeframe series in htf are merged into the timeline by close
// time, so the bias the engine sees at any point only reflects candles
// that had already closed. The engine clock follows candle time, which
// keeps cooldown expiry consistent with the replayed data.
func (r *Runner) Run(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle, htf map[models.Timeframe][]models.Candle) (*Result, error) {
	closed := closedOnly(candles)
	if len(closed) <= warmupCandles {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "need more than %d closed candles, got %d", warmupCandles, len(closed))
	}

	mkt := market.NewStore()
	signals := store.NewMemorySignals()
	cooldowns := store.NewMemoryCooldowns()
	sink := &captureSink{}

	current := closed[warmupCandles-1].CloseTime
	clock := func() time.Time { return current }
	cooldowns.SetClock(clock)

	eng := engine.New(r.cfg, mkt, signals, cooldowns, sink, r.logger)
	eng.SetClock(clock)

	skips := make(map[string]int)
	eng.SetSkipObserver(func(reason string) { skips[reason]++ })

	if err := mkt.Init(symbol, tf, closed[:warmupCandles]); err != nil {
		return nil, err
	}

	feed := newHTFFeed(mkt, symbol, htf)
	if err := feed.advance(current); err != nil {
		return nil, err
	}

	result := &Result{
		Symbol:    symbol,
		Timeframe: tf,
		Candles:   len(closed),
		Skips:     skips,
		Start:     closed[0].OpenTime,
		End:       closed[len(closed)-1].CloseTime,
	}

	for _, c := range closed[warmupCandles:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = c.CloseTime
		if err := feed.advance(current); err != nil {
			return nil, err
		}
		if err := mkt.UpsertClosed(symbol, tf, c); err != nil {
			return nil, err
		}
		eng.EvaluateClose(ctx, symbol, tf)
		result.Evaluations++
	}

	result.Signals = sink.collected()
	r.logger.Info().
		Str("symbol", symbol).
		Str("timeframe", tf.String()).
		Int("candles", result.Candles).
		Int("evaluations", result.Evaluations).
		Int("signals", len(result.Signals)).
		Msg("replay finished")
	return result, nil
}

func closedOnly(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if c.IsClosed {
			out = append(out, c)
		}
	}
	return out
}

// htfFeed releases higher-timeframe candles into the store as the
// replay clock passes their close times.
type htfFeed struct {
	market *market.Store
	symbol string
	series []htfSeries
}

type htfSeries struct {
	tf      models.Timeframe
	candles []models.Candle
	next    int
}

func newHTFFeed(mkt *market.Store, symbol string, htf map[models.Timeframe][]models.Candle) *htfFeed {
	feed := &htfFeed{market: mkt, symbol: symbol}
	for tf, candles := range htf {
		feed.series = append(feed.series, htfSeries{tf: tf, candles: closedOnly(candles)})
	}
	sort.Slice(feed.series, func(i, j int) bool {
		return feed.series[i].tf.Duration() < feed.series[j].tf.Duration()
	})
	return feed
}

func (f *htfFeed) advance(now time.Time) error {
	for i := range f.series {
		s := &f.series[i]
		for s.next < len(s.candles) && !s.candles[s.next].CloseTime.After(now) {
			if err := f.market.UpsertClosed(f.symbol, s.tf, s.candles[s.next]); err != nil {
				return err
			}
			s.next++
		}
	}
	return nil
}
