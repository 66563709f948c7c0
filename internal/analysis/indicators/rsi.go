// Package indicators provides the oscillator math feeding divergence
// detection and signal scoring.
package indicators

import (
	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

// DefaultRSIPeriod is the standard 14-bar Wilder RSI.
const DefaultRSIPeriod = 14

// RSI computes the Relative Strength Index over close prices using
// Wilder smoothing. The result is aligned with the input; entries
// before index period are zero because no value is computable there.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "rsi period must be positive")
	}
	if len(closes) < period+1 {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "rsi needs %d closes, have %d", period+1, len(closes))
	}

	n := len(closes)
	result := make([]float64, n)
	gains := make([]float64, n)
	losses := make([]float64, n)

	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	// First average is a plain SMA, the rest use Wilder smoothing.
	avgGain := mean(gains[1 : period+1])
	avgLoss := mean(losses[1 : period+1])
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func closePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}
