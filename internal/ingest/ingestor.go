// Package ingest seeds the candle store over REST and keeps it current
// from the live stream, publishing every update into the event hub.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/exchange"
	"bybit-sentinel/internal/market"
	"bybit-sentinel/internal/metrics"
	"bybit-sentinel/internal/models"
	"bybit-sentinel/internal/stream"
)

const dropSampleInterval = 30 * time.Second

// Ingestor owns the market data lifecycle: historical backfill at
// startup, then the stream connection for as long as the context
// lives.
type Ingestor struct {
	cfg      *config.Config
	provider exchange.Provider
	streamer exchange.Streamer
	market   *market.Store
	hub      *stream.Hub
	logger   zerolog.Logger
}

// New wires an ingestor over the exchange adapters, the candle store
// and the event hub.
func New(cfg *config.Config, provider exchange.Provider, streamer exchange.Streamer, mkt *market.Store, hub *stream.Hub, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		provider: provider,
		streamer: streamer,
		market:   mkt,
		hub:      hub,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Run backfills every configured pair and then consumes the live
// stream until ctx is cancelled. It returns nil on graceful shutdown;
// any other return is fatal and the caller should exit non-zero.
func (i *Ingestor) Run(ctx context.Context) error {
	if err := i.BackfillAll(ctx); err != nil {
		return err
	}

	go i.monitorDrops(ctx)

	err := i.streamer.Stream(ctx, i.cfg.Market.Symbols, i.cfg.Market.Timeframes, i.publish, i.publish)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// BackfillAll seeds the candle store for every (symbol, timeframe)
// pair. The provider may include the still-forming candle; the store
// keeps closed candles only.
func (i *Ingestor) BackfillAll(ctx context.Context) error {
	limit := i.cfg.Exchange.BackfillLimit
	for _, symbol := range i.cfg.Market.Symbols {
		for _, tf := range i.cfg.Market.Timeframes {
			candles, err := i.provider.Backfill(ctx, symbol, tf, limit, time.Time{}, time.Time{})
			if err != nil {
				return fmt.Errorf("failed to backfill %s %s: %w", symbol, tf, err)
			}
			if err := i.market.Init(symbol, tf, candles); err != nil {
				return fmt.Errorf("failed to seed %s %s: %w", symbol, tf, err)
			}

			seeded := i.market.Len(symbol, tf)
			metrics.CandlesIngested.WithLabelValues(symbol, tf.String(), "backfill").Add(float64(seeded))
			i.logger.Info().
				Str("symbol", symbol).
				Str("timeframe", tf.String()).
				Int("candles", seeded).
				Msg("backfill seeded")
		}
	}
	return nil
}

// publish forwards one stream update into the hub. Closed and forming
// updates travel the same path; consumers branch on IsClosed.
func (i *Ingestor) publish(symbol string, tf models.Timeframe, candle models.Candle) {
	i.hub.Publish(stream.CandleEvent{Symbol: symbol, Timeframe: tf, Candle: candle})
}

// monitorDrops samples the hub's overflow counter and surfaces new
// drops in the metrics and the log.
func (i *Ingestor) monitorDrops(ctx context.Context) {
	ticker := time.NewTicker(dropSampleInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := i.hub.Metrics()
			if delta := m.EventsDropped - last; delta > 0 {
				metrics.AddEventsDropped(delta)
				i.logger.Warn().Uint64("dropped", delta).Msg("hub dropped candle events")
			}
			last = m.EventsDropped
		}
	}
}
