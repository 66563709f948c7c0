// Package scoring composes the final signal score from HTF alignment,
// setup quality, candle strength, volume and RSI divergence.
package scoring

import (
	"bybit-sentinel/internal/models"
)

// Component caps. The total is capped at 100 plus the divergence bonus.
const (
	htfMax    = 30.0
	setupMax  = 30.0
	candleMax = 25.0
	volumeMax = 15.0
)

// Scorer weighs the analysis snapshot into a 0..100+bonus score.
type Scorer struct {
	divergenceBonus float64
}

// NewScorer builds a Scorer. divergenceBonus is added when an RSI
// divergence aligns with the trade side, on top of the base 100.
func NewScorer(divergenceBonus float64) *Scorer {
	return &Scorer{divergenceBonus: divergenceBonus}
}

// Score itemises and totals the components for a setup. The alignment
// comes from checking the setup side against the HTF bias, strength
// from the triggering candle, divergence from the RSI detector (nil
// when none).
func (s *Scorer) Score(setup *models.Setup, alignment models.HTFAlignment, strength models.CandleStrength, divergence *models.Divergence) models.ScoreBreakdown {
	if setup == nil {
		return models.ScoreBreakdown{}
	}

	b := models.ScoreBreakdown{
		HTF:        htfComponent(alignment),
		Setup:      setupComponent(setup),
		Candle:     candleComponent(setup.Side, strength),
		Volume:     volumeComponent(setup),
		Divergence: s.divergenceComponent(setup.Side, divergence),
	}
	b.Total = clamp(b.HTF+b.Setup+b.Candle+b.Volume+b.Divergence, 0, 100+s.divergenceBonus)
	return b
}

// htfComponent rewards trading with the higher-timeframe bias. An
// aligned side starts at 25 and earns up to 5 more with bias strength;
// a misaligned side starts at 5 and can reach at most 20.
func htfComponent(a models.HTFAlignment) float64 {
	score := clamp(a.Score, 0, 1)
	if a.Aligned {
		return clamp(25+5*score, 0, htfMax)
	}
	return clamp(5+15*score, 0, htfMax)
}

// setupComponent grades the setup variant. Confirmed breaks and
// pattern-backed reversals rate highest; unconfirmed breaks lowest.
func setupComponent(setup *models.Setup) float64 {
	score := 10.0
	switch setup.Type {
	case models.SetupReversal:
		score += 12
		if setup.Pattern != nil {
			score += setup.Pattern.Strength * 8
		}
	case models.SetupBreakout, models.SetupBreakdown:
		if setup.IsTrue {
			score += 15
		} else {
			score += 5
		}
	case models.SetupRetest:
		score += 12
		if setup.Pattern != nil {
			score += 5
		}
	case models.SetupFalseBreakout, models.SetupFalseBreakdown:
		score += 10
	default:
		score += 5
	}
	return clamp(score, 0, setupMax)
}

// candleComponent grades the triggering candle's anatomy against the
// trade side.
func candleComponent(side models.Side, cs models.CandleStrength) float64 {
	score := 12.0

	aligned := (side == models.SideLong && cs.Direction == models.Bullish) ||
		(side == models.SideShort && cs.Direction == models.Bearish)
	if aligned {
		score += 10 * cs.BodyPercent
	} else if cs.Direction != models.Neutral {
		score -= 6
	}

	if (side == models.SideLong && cs.CloseLocation > 0.5) ||
		(side == models.SideShort && cs.CloseLocation < 0.5) {
		score += 3
	}

	if r := cs.Rejection; r != nil {
		opposes := (side == models.SideLong && r.Type == models.RejectionDownside) ||
			(side == models.SideShort && r.Type == models.RejectionUpside)
		if opposes {
			score += 4 * r.Strength
		}
	}

	return clamp(score, 0, candleMax)
}

// volumeComponent grades participation behind the move.
func volumeComponent(setup *models.Setup) float64 {
	score := 5.0
	switch {
	case setup.VolumeRatio >= 2.0:
		score += 10
	case setup.VolumeRatio >= 1.5:
		score += 7
	case setup.VolumeRatio >= 1.2:
		score += 5
	case setup.VolumeRatio < 0.8:
		score -= 3
	}
	if setup.VolumeSpike {
		score += 3
	}
	return clamp(score, 0, volumeMax)
}

func (s *Scorer) divergenceComponent(side models.Side, d *models.Divergence) float64 {
	if d == nil {
		return 0
	}
	aligned := (side == models.SideLong && d.Direction == models.Bullish) ||
		(side == models.SideShort && d.Direction == models.Bearish)
	if aligned {
		return s.divergenceBonus
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
