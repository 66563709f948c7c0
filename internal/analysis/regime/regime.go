// Package regime classifies the market state from realised volatility
// and the slope of recent closes.
package regime

import (
	"math"

	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

const (
	// DefaultATRPeriod is the window for the true-range average.
	DefaultATRPeriod = 14
	// DefaultSlopePeriod is the window for the close regression.
	DefaultSlopePeriod = 20
	// historicalShift is how far back the reference ATR window ends.
	historicalShift = 25

	expansionRatio = 1.5
	trendSlopeMin  = 0.3
	rangeRatioMax  = 0.8
	rangeSlopeMax  = 0.2
)

// ATR returns the simple average of the last period true ranges.
func ATR(candles []models.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Wrap(errors.ErrConfigInvalid, "atr period must be positive")
	}
	if len(candles) < period+1 {
		return 0, errors.Wrapf(errors.ErrInsufficientData, "atr needs %d candles, have %d", period+1, len(candles))
	}

	n := len(candles)
	var total float64
	for i := n - period; i < n; i++ {
		total += trueRange(candles[i], candles[i-1])
	}
	return total / float64(period), nil
}

func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// Slope fits an ordinary least-squares line through the last period
// closes and returns the per-bar slope normalised by the average
// close, in percent.
func Slope(candles []models.Candle, period int) (float64, error) {
	if period < 2 {
		return 0, errors.Wrap(errors.ErrConfigInvalid, "slope period must be at least 2")
	}
	if len(candles) < period {
		return 0, errors.Wrapf(errors.ErrInsufficientData, "slope needs %d candles, have %d", period, len(candles))
	}

	window := candles[len(candles)-period:]
	var sumX, sumY, sumXY, sumXX float64
	for i, c := range window {
		x := float64(i)
		sumX += x
		sumY += c.Close
		sumXY += x * c.Close
		sumXX += x * x
	}

	n := float64(period)
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, nil
	}
	slope := (n*sumXY - sumX*sumY) / den

	avgClose := sumY / n
	if avgClose == 0 {
		return 0, nil
	}
	return slope / avgClose * 100, nil
}

// DetectMarketRegime compares current ATR against a reference window
// ending historicalShift candles back and combines the ratio with the
// close slope and the structure read for the same timeframe.
//
// Trend classification requires the slope sign and the structure to
// agree; a conflict drops through to the structure fallback at reduced
// confidence.
func DetectMarketRegime(candles []models.Candle, structure models.Structure) (models.Regime, error) {
	minLen := historicalShift + DefaultATRPeriod + 1
	if len(candles) < minLen {
		return models.Regime{}, errors.Wrapf(errors.ErrInsufficientData, "regime needs %d candles, have %d", minLen, len(candles))
	}

	current, err := ATR(candles, DefaultATRPeriod)
	if err != nil {
		return models.Regime{}, err
	}
	historical, err := ATR(candles[:len(candles)-historicalShift], DefaultATRPeriod)
	if err != nil {
		return models.Regime{}, err
	}
	slope, err := Slope(candles, DefaultSlopePeriod)
	if err != nil {
		return models.Regime{}, err
	}

	var atrRatio float64
	switch {
	case historical > 0:
		atrRatio = current / historical
	case current > 0:
		// Volatility out of nothing reads as expansion.
		atrRatio = expansionRatio * 2
	default:
		atrRatio = 1
	}

	regime := models.Regime{ATRRatio: atrRatio, Slope: slope}

	switch {
	case atrRatio > expansionRatio:
		regime.Type = models.RegimeExpansion
		regime.Confidence = math.Min(1.0, atrRatio/2)
	case math.Abs(slope) > trendSlopeMin && slopeAgreesWith(slope, structure):
		if structure == models.StructureUp {
			regime.Type = models.RegimeTrendUp
		} else {
			regime.Type = models.RegimeTrendDown
		}
		regime.Confidence = math.Min(1.0, 0.6+math.Abs(slope)/2)
	case atrRatio < rangeRatioMax && math.Abs(slope) < rangeSlopeMax:
		regime.Type = models.RegimeRange
		regime.Confidence = 0.7
	default:
		switch structure {
		case models.StructureUp:
			regime.Type = models.RegimeTrendUp
			regime.Confidence = 0.4
		case models.StructureDown:
			regime.Type = models.RegimeTrendDown
			regime.Confidence = 0.4
		default:
			regime.Type = models.RegimeRange
			regime.Confidence = 0.3
		}
	}

	return regime, nil
}

func slopeAgreesWith(slope float64, structure models.Structure) bool {
	switch structure {
	case models.StructureUp:
		return slope > 0
	case models.StructureDown:
		return slope < 0
	default:
		return false
	}
}
