// Package models provides domain models for the signal pipeline.
package models

import (
	"fmt"
	"math"
	"time"
)

// Side represents the direction of a prospective trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// SignalStage distinguishes early intrabar alerts from confirmed entries.
type SignalStage string

const (
	StageSetup SignalStage = "SETUP"
	StageEntry SignalStage = "ENTRY"
)

// Direction labels the bias of a pattern, structure event, or candle.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Candle represents OHLCV data for a single interval.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	IsClosed  bool      `json:"is_closed"`
}

// Range returns high minus low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance from the body bottom to the low.
func (c Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Validate rejects malformed candles before they reach the store.
func (c Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle has non-finite field: %+v", c)
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle has negative volume %.4f", c.Volume)
	}
	lo := math.Min(c.Open, c.Close)
	hi := math.Max(c.Open, c.Close)
	if c.Low > lo || c.High < hi {
		return fmt.Errorf("candle OHLC out of order: O=%.4f H=%.4f L=%.4f C=%.4f", c.Open, c.High, c.Low, c.Close)
	}
	if !c.OpenTime.Before(c.CloseTime) {
		return fmt.Errorf("candle openTime %s not before closeTime %s", c.OpenTime, c.CloseTime)
	}
	return nil
}
