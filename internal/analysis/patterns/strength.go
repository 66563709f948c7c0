package patterns

import "bybit-sentinel/internal/models"

// Rejection thresholds: a wick must cover at least half the range and
// clearly dominate the opposite wick to count as a rejection.
const (
	rejectionWickMin   = 0.5
	rejectionDominance = 2.0
)

// CandleStrength breaks one candle into its anatomy: body share, close
// location within the range, wick shares, and an optional one-sided
// rejection. A zero-range candle carries no information and maps to a
// neutral result with no rejection.
func CandleStrength(c models.Candle) models.CandleStrength {
	rng := c.Range()
	if rng <= 0 {
		return models.CandleStrength{Direction: models.Neutral}
	}

	cs := models.CandleStrength{
		BodyPercent:      c.Body() / rng,
		CloseLocation:    (c.Close - c.Low) / rng,
		UpperWickPercent: c.UpperWick() / rng,
		LowerWickPercent: c.LowerWick() / rng,
		Direction:        models.Neutral,
	}

	switch {
	case c.IsBullish():
		cs.Direction = models.Bullish
	case c.IsBearish():
		cs.Direction = models.Bearish
	}

	if cs.LowerWickPercent >= rejectionWickMin &&
		cs.LowerWickPercent > cs.UpperWickPercent*rejectionDominance {
		cs.Rejection = &models.Rejection{
			Type:     models.RejectionDownside,
			Strength: cs.LowerWickPercent,
		}
	} else if cs.UpperWickPercent >= rejectionWickMin &&
		cs.UpperWickPercent > cs.LowerWickPercent*rejectionDominance {
		cs.Rejection = &models.Rejection{
			Type:     models.RejectionUpside,
			Strength: cs.UpperWickPercent,
		}
	}

	return cs
}
