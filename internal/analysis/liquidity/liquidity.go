// Package liquidity detects stop-hunt sweeps: a wick through a
// reference level with the close back on the original side.
package liquidity

import (
	"sort"

	"bybit-sentinel/internal/models"
)

// DefaultLookback bounds how many recent references are scanned per side.
const DefaultLookback = 10

// DetectSweep inspects the current candle against recent swing
// extremes and zone edges. Swing references are scanned before zone
// edges; within the swings both sides are walked together, newest
// pivot first, and the first match wins. Zone references follow,
// support then resistance.
func DetectSweep(candles []models.Candle, pivotHighs, pivotLows []int, zoneSet models.ZoneSet, lookback int) *models.Sweep {
	n := len(candles)
	if n == 0 || lookback <= 0 {
		return nil
	}
	curr := candles[n-1]

	lows := lastK(pivotLows, lookback)
	highs := lastK(pivotHighs, lookback)

	// Walk both pivot lists newest first in one pass.
	li, hi := len(lows)-1, len(highs)-1
	for li >= 0 || hi >= 0 {
		var idx int
		var isLow bool
		switch {
		case li >= 0 && (hi < 0 || lows[li] > highs[hi]):
			idx, isLow = lows[li], true
			li--
		default:
			idx, isLow = highs[hi], false
			hi--
		}
		if idx < 0 || idx >= n-1 {
			continue
		}
		if isLow {
			if s := sweepAgainstLow(curr, candles[idx].Low, models.SweepSwing); s != nil {
				return s
			}
		} else {
			if s := sweepAgainstHigh(curr, candles[idx].High, models.SweepSwing); s != nil {
				return s
			}
		}
	}

	for _, z := range lastZones(zoneSet.Support, lookback) {
		if s := sweepAgainstLow(curr, z.Lower, models.SweepZone); s != nil {
			return s
		}
	}
	for _, z := range lastZones(zoneSet.Resistance, lookback) {
		if s := sweepAgainstHigh(curr, z.Upper, models.SweepZone); s != nil {
			return s
		}
	}

	return nil
}

// sweepAgainstLow reports a bullish sweep: the wick takes out the
// reference low but the close recovers above it.
func sweepAgainstLow(c models.Candle, ref float64, source models.SweepSource) *models.Sweep {
	if !(c.Low < ref && c.Close > ref) {
		return nil
	}
	return &models.Sweep{
		Type:      models.Bullish,
		Source:    source,
		Reference: ref,
		Strength:  (c.Close - c.Low) / c.Range(),
	}
}

// sweepAgainstHigh is the bearish mirror against a reference high.
func sweepAgainstHigh(c models.Candle, ref float64, source models.SweepSource) *models.Sweep {
	if !(c.High > ref && c.Close < ref) {
		return nil
	}
	return &models.Sweep{
		Type:      models.Bearish,
		Source:    source,
		Reference: ref,
		Strength:  (c.High - c.Close) / c.Range(),
	}
}

func lastK(idx []int, k int) []int {
	if k <= 0 || len(idx) == 0 {
		return nil
	}
	if k >= len(idx) {
		return idx
	}
	return idx[len(idx)-k:]
}

// lastZones returns up to k zones, most recently touched first.
func lastZones(zones []models.Zone, k int) []models.Zone {
	if len(zones) == 0 || k <= 0 {
		return nil
	}
	out := make([]models.Zone, len(zones))
	copy(out, zones)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
