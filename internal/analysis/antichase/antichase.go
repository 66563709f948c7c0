// Package antichase measures how far price has already travelled from
// a setup's origin and decides whether entering now would be chasing
// the move. Higher scores mean riskier entries.
package antichase

import (
	"fmt"
	"math"
	"strings"

	"bybit-sentinel/internal/analysis/regime"
	"bybit-sentinel/internal/analysis/setups"
	"bybit-sentinel/internal/models"
)

const (
	climaxRatio  = 2.5
	climaxWindow = 20

	momentumWindow  = 3
	accelerationMin = 1.3
	slowdownMax     = 0.7

	chaseNoThreshold = 50.0
	cautionThreshold = 25.0
)

// Evaluator scores chase risk against configured extension limits.
type Evaluator struct {
	maxATR float64
	maxPct float64
}

// NewEvaluator builds an Evaluator. maxATR and maxPct bound the
// distance from the setup origin, in ATR multiples and percent, beyond
// which the extension component saturates.
func NewEvaluator(maxATR, maxPct float64) *Evaluator {
	return &Evaluator{maxATR: maxATR, maxPct: maxPct}
}

// Evaluate scores the current candle against the setup origin. event is
// the structure event detected on this snapshot, nil when none fired.
// Always returns a populated evaluation, falling back to a permissive
// one when there is not enough data to measure.
func (e *Evaluator) Evaluate(candles []models.Candle, setup *models.Setup, event *models.StructureEvent) models.ChaseEval {
	if setup == nil || len(candles) == 0 {
		return models.ChaseEval{
			Decision: models.ChaseOK,
			Reason:   "not enough data to measure chase risk",
		}
	}

	curr := candles[len(candles)-1]
	metrics := e.measure(candles, curr, setup)

	score := 0.0
	var notes []string

	if ext := e.extensionScore(metrics); ext > 0 {
		score += ext
		notes = append(notes, fmt.Sprintf("%.2f ATR / %.2f%% from origin", metrics.ATRMove, metrics.PctMove))
	}

	switch {
	case metrics.Consecutive >= 5:
		score += 20
		notes = append(notes, fmt.Sprintf("%d consecutive trend candles", metrics.Consecutive))
	case metrics.Consecutive >= 3:
		score += 15
		notes = append(notes, fmt.Sprintf("%d consecutive trend candles", metrics.Consecutive))
	case metrics.Consecutive >= 2:
		score += 10
	}

	aligned := (setup.Side == models.SideLong && curr.IsBullish()) ||
		(setup.Side == models.SideShort && curr.IsBearish())
	if metrics.BodyRatio > 0.7 && aligned {
		score += 15
		notes = append(notes, "strong full-body candle")
	} else if metrics.BodyRatio > 0.5 {
		score += 8
	}

	if metrics.VolumeClimax {
		score -= 15
		notes = append(notes, "volume climax")
	} else if setup.VolumeSpike {
		score += 10
		notes = append(notes, "volume spike")
	}

	if metrics.Slowdown {
		score -= 20
		notes = append(notes, "momentum slowing")
	} else if metrics.Acceleration {
		score += 10
		notes = append(notes, "momentum accelerating")
	}

	alignedCHoCH := isCHoCH(event) && directionMatches(event, setup.Side)
	if alignedCHoCH {
		score -= 25
		notes = append(notes, "aligned character change")
	}

	eval := models.ChaseEval{Score: score, Metrics: metrics}

	switch {
	case score >= chaseNoThreshold:
		eval.Decision = models.ChaseNo
		eval.Reason = "too extended: " + joinNotes(notes)
	case score >= cautionThreshold:
		eval.Decision = models.ChaseOK
		eval.Reason = "enter with caution: " + joinNotes(notes)
	default:
		eval.Decision = models.ChaseOK
		eval.Reason = joinNotes(notes)
		counterCHoCH := isCHoCH(event) && !directionMatches(event, setup.Side)
		if metrics.VolumeClimax || (metrics.Consecutive >= 5 && metrics.Slowdown) || counterCHoCH {
			eval.Decision = models.ReversalWatch
			eval.Reason = "exhaustion signs against the move: " + joinNotes(notes)
		}
	}

	return eval
}

func (e *Evaluator) measure(candles []models.Candle, curr models.Candle, setup *models.Setup) models.ChaseMetrics {
	var m models.ChaseMetrics

	// The anchor zone is the move's origin; bare setups fall back to
	// their own price.
	origin := setup.Price
	if setup.Zone != nil {
		origin = setup.Zone.Center
	}
	move := math.Abs(curr.Close - origin)
	if atr, err := regime.ATR(candles, regime.DefaultATRPeriod); err == nil && atr > 0 {
		m.ATRMove = move / atr
	}
	if origin > 0 {
		m.PctMove = move / origin * 100
	}
	if rng := curr.Range(); rng > 0 {
		m.BodyRatio = curr.Body() / rng
	}

	m.VolumeRatio = setups.VolumeRatio(candles)
	m.VolumeClimax = m.VolumeRatio >= climaxRatio && isWindowMax(candles, climaxWindow)
	m.Consecutive = consecutiveAligned(candles, setup.Side)
	m.Acceleration, m.Slowdown = bodyMomentum(candles)

	return m
}

// extensionScore grows linearly with the larger of the ATR and percent
// extensions relative to their limits, saturating at 40.
func (e *Evaluator) extensionScore(m models.ChaseMetrics) float64 {
	frac := 0.0
	if e.maxATR > 0 {
		frac = math.Max(frac, m.ATRMove/e.maxATR)
	}
	if e.maxPct > 0 {
		frac = math.Max(frac, m.PctMove/e.maxPct)
	}
	if frac > 1 {
		frac = 1
	}
	return 40 * frac
}

// isWindowMax reports whether the latest volume is the greatest across
// the last window candles, itself included.
func isWindowMax(candles []models.Candle, window int) bool {
	n := len(candles)
	if n == 0 {
		return false
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	vol := candles[n-1].Volume
	for _, c := range candles[start:] {
		if c.Volume > vol {
			return false
		}
	}
	return true
}

// consecutiveAligned counts the run of candles matching the side's
// colour, ending at the latest candle. Zero when the latest candle
// itself does not match.
func consecutiveAligned(candles []models.Candle, side models.Side) int {
	count := 0
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		match := (side == models.SideLong && c.IsBullish()) ||
			(side == models.SideShort && c.IsBearish())
		if !match {
			break
		}
		count++
	}
	return count
}

// bodyMomentum compares the average body of the last three candles
// against the three before them.
func bodyMomentum(candles []models.Candle) (acceleration, slowdown bool) {
	if len(candles) < 2*momentumWindow {
		return false, false
	}

	n := len(candles)
	recent := avgBody(candles[n-momentumWindow:])
	prior := avgBody(candles[n-2*momentumWindow : n-momentumWindow])
	if prior <= 0 {
		return false, false
	}

	ratio := recent / prior
	return ratio >= accelerationMin, ratio <= slowdownMax
}

func avgBody(candles []models.Candle) float64 {
	var sum float64
	for _, c := range candles {
		sum += c.Body()
	}
	return sum / float64(len(candles))
}

func isCHoCH(event *models.StructureEvent) bool {
	return event != nil && event.Type == models.EventCHoCH
}

func directionMatches(event *models.StructureEvent, side models.Side) bool {
	if event == nil {
		return false
	}
	return (side == models.SideLong && event.Direction == models.Bullish) ||
		(side == models.SideShort && event.Direction == models.Bearish)
}

func joinNotes(notes []string) string {
	if len(notes) == 0 {
		return "price near entry"
	}
	return strings.Join(notes, ", ")
}
