// Package structure classifies per-timeframe trend from recent swing
// points and aggregates higher-timeframe structures into a weighted
// directional bias.
package structure

import (
	"math"

	"bybit-sentinel/internal/analysis/pivots"
	"bybit-sentinel/internal/models"
)

const (
	// pivotsConsidered is how many recent swing highs and lows feed the
	// trend label.
	pivotsConsidered = 3

	// biasThreshold is the weighted score beyond which the aggregate
	// bias turns directional.
	biasThreshold = 0.5
)

// DefaultWeights carries the bias weights used when no configuration is
// supplied. Timeframes missing from the map contribute nothing.
var DefaultWeights = map[models.Timeframe]float64{
	models.TF1d: 0.6,
	models.TF4h: 0.4,
}

// Analyze classifies one timeframe from its last three swing highs and
// lows: higher highs with higher lows mean an uptrend, lower highs with
// lower lows a downtrend, anything mixed is neutral. Fewer than two
// swings on either side leaves the structure undetermined.
func Analyze(candles []models.Candle, window int) models.Structure {
	highIdx := pivots.RecentHighs(candles, window, pivotsConsidered)
	lowIdx := pivots.RecentLows(candles, window, pivotsConsidered)
	if len(highIdx) < 2 || len(lowIdx) < 2 {
		return models.StructureNeutral
	}

	highs := make([]float64, len(highIdx))
	for i, idx := range highIdx {
		highs[i] = candles[idx].High
	}
	lows := make([]float64, len(lowIdx))
	for i, idx := range lowIdx {
		lows[i] = candles[idx].Low
	}

	switch {
	case ascending(highs) && ascending(lows):
		return models.StructureUp
	case descending(highs) && descending(lows):
		return models.StructureDown
	default:
		return models.StructureNeutral
	}
}

// DetermineHTFBias aggregates per-timeframe structures into a weighted
// bias. The weighted score sums weight times structure sign; it crosses
// into bullish at +0.5 and bearish at -0.5. Alignment reports whether
// every present timeframe carries the same structure. Score stores the
// magnitude of the weighted sum.
func DetermineHTFBias(structures map[models.Timeframe]models.Structure, weights map[models.Timeframe]float64) models.HTFBias {
	bias := models.HTFBias{
		Bias:       models.Neutral,
		Structures: structures,
	}
	if len(structures) == 0 {
		return bias
	}
	if weights == nil {
		weights = DefaultWeights
	}

	var weighted float64
	agreement := true
	var first models.Structure
	seen := false
	for tf, st := range structures {
		weighted += weights[tf] * sign(st)
		if !seen {
			first = st
			seen = true
		} else if st != first {
			agreement = false
		}
	}

	bias.Alignment = agreement
	bias.Score = math.Min(math.Abs(weighted), 1)
	switch {
	case weighted >= biasThreshold:
		bias.Bias = models.Bullish
	case weighted <= -biasThreshold:
		bias.Bias = models.Bearish
	}
	return bias
}

// CheckAlignment reports whether a trade side agrees with the
// higher-timeframe bias. The score maps the signed bias onto [0,1] from
// the side's point of view: 1 when the bias fully backs the side, 0
// when it fully opposes it, 0.5 when the bias is neutral.
func CheckAlignment(side models.Side, bias models.HTFBias) models.HTFAlignment {
	signed := bias.Score
	switch bias.Bias {
	case models.Bearish:
		signed = -signed
	case models.Neutral:
		signed = 0
	}

	dir := 1.0
	if side == models.SideShort {
		dir = -1.0
	}

	return models.HTFAlignment{
		Aligned: (side == models.SideLong && bias.Bias == models.Bullish) ||
			(side == models.SideShort && bias.Bias == models.Bearish),
		Score: (signed*dir + 1) / 2,
	}
}

func sign(st models.Structure) float64 {
	switch st {
	case models.StructureUp:
		return 1
	case models.StructureDown:
		return -1
	default:
		return 0
	}
}

func ascending(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return false
		}
	}
	return len(values) >= 2
}

func descending(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] >= values[i-1] {
			return false
		}
	}
	return len(values) >= 2
}
