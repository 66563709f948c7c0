// Package patterns provides candlestick pattern recognition and
// candle-strength metrics for the analysis pipeline.
package patterns

import (
	"math"

	"bybit-sentinel/internal/models"
)

// Detector recognises single, two and three candle reversal patterns.
type Detector struct {
	// Configuration for pattern detection
	pinBodyMax       float64 // Body size as % of range for pin bars
	pinWickMin       float64 // Dominant wick as % of range for pin bars
	pinOppositeMax   float64 // Opposite wick as % of range for pin bars
	dojiBodyMax      float64 // Body size as % of range for doji
	tweezerTolerance float64 // Relative distance between equal extremes
	starLargeBodyMin float64 // Body size as % of range for the star's anchor candles
	starSmallBodyMax float64 // Body size as % of range for the star candle
}

// NewDetector creates a detector with the default thresholds.
func NewDetector() *Detector {
	return &Detector{
		pinBodyMax:       0.30,
		pinWickMin:       0.60,
		pinOppositeMax:   0.20,
		dojiBodyMax:      0.05,
		tweezerTolerance: 0.002,
		starLargeBodyMin: 0.60,
		starSmallBodyMax: 0.30,
	}
}

// DetectReversalPattern inspects the most recent candles and returns the
// first match in priority order: three-bar stars, two-bar reversal,
// tweezers, engulfing, inside bar, pin bars, doji. Nil when nothing
// recognisable formed.
func (d *Detector) DetectReversalPattern(candles []models.Candle) *models.Pattern {
	n := len(candles)
	if n == 0 {
		return nil
	}

	if n >= 3 {
		first, second, third := candles[n-3], candles[n-2], candles[n-1]
		if p := d.detectMorningStar(first, second, third); p != nil {
			return p
		}
		if p := d.detectEveningStar(first, second, third); p != nil {
			return p
		}
	}

	if n >= 2 {
		prev, curr := candles[n-2], candles[n-1]
		if p := d.detectTwoBarReversal(prev, curr); p != nil {
			return p
		}
		if p := d.detectTweezer(prev, curr); p != nil {
			return p
		}
		if p := d.detectEngulfing(prev, curr); p != nil {
			return p
		}
		if p := d.detectInsideBar(prev, curr); p != nil {
			return p
		}
	}

	curr := candles[n-1]
	if p := d.detectHammer(curr); p != nil {
		return p
	}
	if p := d.detectShootingStar(curr); p != nil {
		return p
	}
	return d.detectDoji(curr)
}

// Single-candle patterns

// detectHammer detects a bullish pin bar: small body near the top with
// a dominant lower wick.
func (d *Detector) detectHammer(c models.Candle) *models.Pattern {
	rng := c.Range()
	if rng <= 0 {
		return nil
	}

	body := c.Body() / rng
	lower := c.LowerWick() / rng
	upper := c.UpperWick() / rng

	if body >= d.pinBodyMax || lower <= d.pinWickMin || upper >= d.pinOppositeMax {
		return nil
	}

	return &models.Pattern{
		Name:     "Hammer",
		Type:     models.Bullish,
		Strength: 0.7,
	}
}

// detectShootingStar detects a bearish pin bar: small body near the
// bottom with a dominant upper wick.
func (d *Detector) detectShootingStar(c models.Candle) *models.Pattern {
	rng := c.Range()
	if rng <= 0 {
		return nil
	}

	body := c.Body() / rng
	upper := c.UpperWick() / rng
	lower := c.LowerWick() / rng

	if body >= d.pinBodyMax || upper <= d.pinWickMin || lower >= d.pinOppositeMax {
		return nil
	}

	return &models.Pattern{
		Name:     "Shooting Star",
		Type:     models.Bearish,
		Strength: 0.7,
	}
}

// detectDoji detects an indecision candle with a near-absent body.
// Doji are neutral and never seed a directional setup on their own.
func (d *Detector) detectDoji(c models.Candle) *models.Pattern {
	rng := c.Range()
	if rng <= 0 {
		return nil
	}

	if c.Body()/rng >= d.dojiBodyMax {
		return nil
	}

	return &models.Pattern{
		Name:     "Doji",
		Type:     models.Neutral,
		Strength: 0.5,
	}
}

// Two-candle patterns

// detectEngulfing detects a candle whose body swallows the previous
// candle's body with opposite colour and a larger body.
func (d *Detector) detectEngulfing(prev, curr models.Candle) *models.Pattern {
	if curr.Body() <= prev.Body() {
		return nil
	}

	if prev.IsBearish() && curr.IsBullish() &&
		curr.Open <= prev.Close && curr.Close >= prev.Open {
		return &models.Pattern{
			Name:     "Bullish Engulfing",
			Type:     models.Bullish,
			Strength: 0.8,
		}
	}

	if prev.IsBullish() && curr.IsBearish() &&
		curr.Open >= prev.Close && curr.Close <= prev.Open {
		return &models.Pattern{
			Name:     "Bearish Engulfing",
			Type:     models.Bearish,
			Strength: 0.8,
		}
	}

	return nil
}

// detectTweezer detects two opposite-colour candles sharing an extreme
// within the tolerance.
func (d *Detector) detectTweezer(prev, curr models.Candle) *models.Pattern {
	if prev.Low > 0 && math.Abs(prev.Low-curr.Low)/prev.Low <= d.tweezerTolerance &&
		prev.IsBearish() && curr.IsBullish() {
		return &models.Pattern{
			Name:     "Tweezer Bottom",
			Type:     models.Bullish,
			Strength: 0.65,
		}
	}

	if prev.High > 0 && math.Abs(prev.High-curr.High)/prev.High <= d.tweezerTolerance &&
		prev.IsBullish() && curr.IsBearish() {
		return &models.Pattern{
			Name:     "Tweezer Top",
			Type:     models.Bearish,
			Strength: 0.65,
		}
	}

	return nil
}

// detectInsideBar detects a candle whose range sits strictly within the
// previous candle's range. Inside bars mark compression, not direction,
// so they come out neutral and feed scoring only.
func (d *Detector) detectInsideBar(prev, curr models.Candle) *models.Pattern {
	if curr.High >= prev.High || curr.Low <= prev.Low {
		return nil
	}

	return &models.Pattern{
		Name:     "Inside Bar",
		Type:     models.Neutral,
		Strength: 0.4,
	}
}

// detectTwoBarReversal detects a candle that takes out the previous
// extreme and then closes past the previous opposite extreme.
func (d *Detector) detectTwoBarReversal(prev, curr models.Candle) *models.Pattern {
	if curr.Low < prev.Low && curr.Close > prev.High {
		return &models.Pattern{
			Name:     "Bullish 2-Bar Reversal",
			Type:     models.Bullish,
			Strength: 0.8,
		}
	}

	if curr.High > prev.High && curr.Close < prev.Low {
		return &models.Pattern{
			Name:     "Bearish 2-Bar Reversal",
			Type:     models.Bearish,
			Strength: 0.8,
		}
	}

	return nil
}

// Three-candle patterns

// detectMorningStar detects a large bearish candle, a small-body star,
// and a bullish confirmation closing past the midpoint of the first
// body.
func (d *Detector) detectMorningStar(first, second, third models.Candle) *models.Pattern {
	firstRange := first.Range()
	thirdRange := third.Range()
	if firstRange <= 0 || thirdRange <= 0 {
		return nil
	}

	if !first.IsBearish() || first.Body()/firstRange < d.starLargeBodyMin {
		return nil
	}

	if secondRange := second.Range(); secondRange > 0 && second.Body()/secondRange > d.starSmallBodyMax {
		return nil
	}

	if !third.IsBullish() || third.Body()/thirdRange < d.starLargeBodyMin {
		return nil
	}

	firstMidpoint := (first.Open + first.Close) / 2
	if third.Close < firstMidpoint {
		return nil
	}

	return &models.Pattern{
		Name:     "Morning Star",
		Type:     models.Bullish,
		Strength: 0.85,
	}
}

// detectEveningStar mirrors the morning star at a top.
func (d *Detector) detectEveningStar(first, second, third models.Candle) *models.Pattern {
	firstRange := first.Range()
	thirdRange := third.Range()
	if firstRange <= 0 || thirdRange <= 0 {
		return nil
	}

	if !first.IsBullish() || first.Body()/firstRange < d.starLargeBodyMin {
		return nil
	}

	if secondRange := second.Range(); secondRange > 0 && second.Body()/secondRange > d.starSmallBodyMax {
		return nil
	}

	if !third.IsBearish() || third.Body()/thirdRange < d.starLargeBodyMin {
		return nil
	}

	firstMidpoint := (first.Open + first.Close) / 2
	if third.Close > firstMidpoint {
		return nil
	}

	return &models.Pattern{
		Name:     "Evening Star",
		Type:     models.Bearish,
		Strength: 0.85,
	}
}
