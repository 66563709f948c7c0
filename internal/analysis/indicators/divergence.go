package indicators

import (
	"bybit-sentinel/internal/models"
)

// DetectRSIDivergence compares the last two price pivots against the
// RSI printed at those pivots. A lower low in price with a higher low
// in RSI is a regular bullish divergence; the mirror on pivot highs is
// regular bearish. Bullish is checked first when both sides qualify.
// Pivots that fall before the first computable RSI index are ignored.
func DetectRSIDivergence(candles []models.Candle, pivotHighs, pivotLows []int) *models.Divergence {
	rsi, err := RSI(closePrices(candles), DefaultRSIPeriod)
	if err != nil {
		return nil
	}

	if first, second, ok := lastTwoPivots(pivotLows, DefaultRSIPeriod, len(candles)); ok {
		if candles[second].Low < candles[first].Low && rsi[second] > rsi[first] {
			return &models.Divergence{
				Type:      models.DivergenceRegularBullish,
				Direction: models.Bullish,
			}
		}
	}

	if first, second, ok := lastTwoPivots(pivotHighs, DefaultRSIPeriod, len(candles)); ok {
		if candles[second].High > candles[first].High && rsi[second] < rsi[first] {
			return &models.Divergence{
				Type:      models.DivergenceRegularBearish,
				Direction: models.Bearish,
			}
		}
	}

	return nil
}

// lastTwoPivots returns the two most recent pivot indices that sit in
// the RSI-defined region [minIndex, n).
func lastTwoPivots(pivots []int, minIndex, n int) (first, second int, ok bool) {
	var valid []int
	for _, p := range pivots {
		if p >= minIndex && p < n {
			valid = append(valid, p)
		}
	}
	if len(valid) < 2 {
		return 0, 0, false
	}
	return valid[len(valid)-2], valid[len(valid)-1], true
}
