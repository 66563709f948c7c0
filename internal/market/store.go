// Package market maintains the rolling in-memory candle view per
// symbol and timeframe, separating closed candles from the forming one.
package market

import (
	"sync"

	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

// Retention caps the closed-candle ring per (symbol, timeframe).
const Retention = 1000

type key struct {
	symbol string
	tf     models.Timeframe
}

type series struct {
	closed  []models.Candle
	forming *models.Candle
}

// Store holds the candle series for every configured (symbol, timeframe).
// Reads return copies the caller may keep. Writes for a given key are
// expected to arrive serialised from the ingestion layer; the mutex
// protects cross-key access.
type Store struct {
	mu     sync.RWMutex
	series map[key]*series
}

// NewStore creates an empty candle store.
func NewStore() *Store {
	return &Store{
		series: make(map[key]*series),
	}
}

// Init seeds the series for a (symbol, timeframe) with backfilled
// candles. Candles must arrive in ascending openTime; invalid or
// out-of-order candles are rejected.
func (s *Store) Init(symbol string, tf models.Timeframe, candles []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := &series{closed: make([]models.Candle, 0, len(candles))}
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return errors.Wrap(errors.ErrInvalidCandle, err.Error())
		}
		if !c.IsClosed {
			continue
		}
		if n := len(sr.closed); n > 0 && !sr.closed[n-1].OpenTime.Before(c.OpenTime) {
			return errors.Wrapf(errors.ErrInvalidCandle, "backfill out of order at %s", c.OpenTime)
		}
		sr.closed = append(sr.closed, c)
	}
	if len(sr.closed) > Retention {
		sr.closed = sr.closed[len(sr.closed)-Retention:]
	}
	s.series[key{symbol, tf}] = sr
	return nil
}

// UpsertClosed applies a closed candle: replaces the tail when the
// openTime matches, appends otherwise, drops the forming slot, and
// trims the head past retention.
func (s *Store) UpsertClosed(symbol string, tf models.Timeframe, c models.Candle) error {
	if err := c.Validate(); err != nil {
		return errors.Wrap(errors.ErrInvalidCandle, err.Error())
	}
	if !c.IsClosed {
		return errors.Wrap(errors.ErrInvalidCandle, "upsert of a non-closed candle")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.getOrCreate(symbol, tf)
	if n := len(sr.closed); n > 0 {
		tail := sr.closed[n-1]
		switch {
		case tail.OpenTime.Equal(c.OpenTime):
			sr.closed[n-1] = c
		case tail.OpenTime.Before(c.OpenTime):
			sr.closed = append(sr.closed, c)
		default:
			return errors.Wrapf(errors.ErrInvalidCandle, "closed candle older than tail: %s < %s", c.OpenTime, tail.OpenTime)
		}
	} else {
		sr.closed = append(sr.closed, c)
	}

	sr.forming = nil
	if len(sr.closed) > Retention {
		sr.closed = sr.closed[len(sr.closed)-Retention:]
	}
	return nil
}

// SetForming replaces the single forming candle for the series.
func (s *Store) SetForming(symbol string, tf models.Timeframe, c models.Candle) error {
	if err := c.Validate(); err != nil {
		return errors.Wrap(errors.ErrInvalidCandle, err.Error())
	}
	if c.IsClosed {
		return errors.Wrap(errors.ErrInvalidCandle, "forming candle marked closed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.getOrCreate(symbol, tf)
	forming := c
	sr.forming = &forming
	return nil
}

// Closed returns a copy of the closed candles for the series.
func (s *Store) Closed(symbol string, tf models.Timeframe) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[key{symbol, tf}]
	if !ok {
		return nil
	}
	out := make([]models.Candle, len(sr.closed))
	copy(out, sr.closed)
	return out
}

// ClosedWithForming returns the closed candles plus the forming candle,
// when one exists, appended at the end.
func (s *Store) ClosedWithForming(symbol string, tf models.Timeframe) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[key{symbol, tf}]
	if !ok {
		return nil
	}
	out := make([]models.Candle, len(sr.closed), len(sr.closed)+1)
	copy(out, sr.closed)
	if sr.forming != nil {
		out = append(out, *sr.forming)
	}
	return out
}

// LastN returns a copy of the last n closed candles.
func (s *Store) LastN(symbol string, tf models.Timeframe, n int) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[key{symbol, tf}]
	if !ok || n <= 0 {
		return nil
	}
	if n > len(sr.closed) {
		n = len(sr.closed)
	}
	out := make([]models.Candle, n)
	copy(out, sr.closed[len(sr.closed)-n:])
	return out
}

// Len returns the number of closed candles held for the series.
func (s *Store) Len(symbol string, tf models.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[key{symbol, tf}]
	if !ok {
		return 0
	}
	return len(sr.closed)
}

func (s *Store) getOrCreate(symbol string, tf models.Timeframe) *series {
	k := key{symbol, tf}
	sr, ok := s.series[k]
	if !ok {
		sr = &series{}
		s.series[k] = sr
	}
	return sr
}
