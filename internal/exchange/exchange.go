// Package exchange defines the adapter contracts for market data
// ingestion. Exchange-specific implementations live in subpackages.
package exchange

import (
	"context"
	"time"

	"bybit-sentinel/internal/models"
)

// CandleHandler receives one candle update for a subscribed pair.
type CandleHandler func(symbol string, tf models.Timeframe, candle models.Candle)

// Provider fetches historical candles over REST. Implementations
// return candles in ascending open-time order. A zero start or end
// leaves that bound open.
type Provider interface {
	Backfill(ctx context.Context, symbol string, tf models.Timeframe, limit int, start, end time.Time) ([]models.Candle, error)
}

// Streamer delivers live candle updates for the subscribed pairs until
// the context is cancelled. Closed candles reach onClosed at most once
// per (symbol, timeframe, open time) even across reconnects; forming
// snapshots reach onForming as they arrive. Stream blocks and returns
// why the stream ended: ctx.Err() on cancellation, or the terminal
// error once reconnection attempts are exhausted.
type Streamer interface {
	Stream(ctx context.Context, symbols []string, tfs []models.Timeframe, onClosed, onForming CandleHandler) error
}
