// Package events detects structure breaks against recent swing extremes.
package events

import (
	"bybit-sentinel/internal/models"
)

// DefaultLookback is how many recent pivots form the reference group.
const DefaultLookback = 3

// DetectStructureEvents runs both detectors and keeps the reversal
// when a continuation break fires on the same candle.
func DetectStructureEvents(candles []models.Candle, trend models.Structure, pivotHighs, pivotLows []int) *models.StructureEvent {
	if ev := DetectCHoCH(candles, trend, pivotHighs, pivotLows, DefaultLookback); ev != nil {
		return ev
	}
	return DetectBOS(candles, pivotHighs, pivotLows, DefaultLookback)
}

// DetectBOS reports a trend-continuation break: the close clears the
// recent pivot-high group while that group itself sits beyond the
// prior one (higher highs for bullish, lower lows for bearish).
// It needs more than lookback pivots on a side so a prior group
// exists to compare against.
func DetectBOS(candles []models.Candle, pivotHighs, pivotLows []int, lookback int) *models.StructureEvent {
	if len(candles) == 0 || lookback <= 0 {
		return nil
	}
	currentClose := candles[len(candles)-1].Close

	if len(pivotHighs) > lookback {
		recent := pivotHighs[len(pivotHighs)-lookback:]
		prior := pivotHighs[:len(pivotHighs)-lookback]
		recentMax, okRecent := maxHigh(candles, recent)
		priorMax, okPrior := maxHigh(candles, prior)
		if okRecent && okPrior && currentClose > recentMax && recentMax > priorMax {
			return &models.StructureEvent{
				Type:      models.EventBOS,
				Direction: models.Bullish,
				Price:     recentMax,
			}
		}
	}

	if len(pivotLows) > lookback {
		recent := pivotLows[len(pivotLows)-lookback:]
		prior := pivotLows[:len(pivotLows)-lookback]
		recentMin, okRecent := minLow(candles, recent)
		priorMin, okPrior := minLow(candles, prior)
		if okRecent && okPrior && currentClose < recentMin && recentMin < priorMin {
			return &models.StructureEvent{
				Type:      models.EventBOS,
				Direction: models.Bearish,
				Price:     recentMin,
			}
		}
	}

	return nil
}

// DetectCHoCH reports a reversal: in an uptrend the close dropping
// under the recent pivot-low group, mirrored for a downtrend. Up to
// lookback most recent pivots form the reference.
func DetectCHoCH(candles []models.Candle, trend models.Structure, pivotHighs, pivotLows []int, lookback int) *models.StructureEvent {
	if len(candles) == 0 || lookback <= 0 {
		return nil
	}
	currentClose := candles[len(candles)-1].Close

	switch trend {
	case models.StructureUp:
		refMin, ok := minLow(candles, lastPivots(pivotLows, lookback))
		if ok && currentClose < refMin {
			return &models.StructureEvent{
				Type:      models.EventCHoCH,
				Direction: models.Bearish,
				Price:     refMin,
			}
		}
	case models.StructureDown:
		refMax, ok := maxHigh(candles, lastPivots(pivotHighs, lookback))
		if ok && currentClose > refMax {
			return &models.StructureEvent{
				Type:      models.EventCHoCH,
				Direction: models.Bullish,
				Price:     refMax,
			}
		}
	}

	return nil
}

func lastPivots(pivots []int, k int) []int {
	if len(pivots) <= k {
		return pivots
	}
	return pivots[len(pivots)-k:]
}

func maxHigh(candles []models.Candle, idxs []int) (float64, bool) {
	var m float64
	found := false
	for _, i := range idxs {
		if i < 0 || i >= len(candles) {
			continue
		}
		if !found || candles[i].High > m {
			m = candles[i].High
			found = true
		}
	}
	return m, found
}

func minLow(candles []models.Candle, idxs []int) (float64, bool) {
	var m float64
	found := false
	for _, i := range idxs {
		if i < 0 || i >= len(candles) {
			continue
		}
		if !found || candles[i].Low < m {
			m = candles[i].Low
			found = true
		}
	}
	return m, found
}
