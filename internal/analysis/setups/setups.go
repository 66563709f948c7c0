// Package setups classifies price action at zones into directional
// trade configurations: reversals, breakouts and breakdowns, fades of
// failed breaks, and retests of broken zones.
package setups

import (
	"fmt"
	"math"

	"bybit-sentinel/internal/analysis/patterns"
	"bybit-sentinel/internal/models"
)

const (
	// DefaultRetestWindow bounds how far back a break may sit for the
	// retest detector to still consider the zone in play.
	DefaultRetestWindow = 20

	volumeAvgPeriod = 20
)

// Detector runs the setup classifiers against the latest closed candle.
// Classifiers run in priority order from most to least specific: edge
// cross, pierce rejection, retest, reversal. The first match wins.
type Detector struct {
	minZones       int
	spikeThreshold float64
	retestWindow   int
	patterns       *patterns.Detector
}

// NewDetector builds a Detector. minZones <= 0 disables the zone-count
// gate. spikeThreshold is the volume ratio at or above which a break is
// treated as genuine.
func NewDetector(minZones int, spikeThreshold float64) *Detector {
	return &Detector{
		minZones:       minZones,
		spikeThreshold: spikeThreshold,
		retestWindow:   DefaultRetestWindow,
		patterns:       patterns.NewDetector(),
	}
}

// Detect classifies the most recent closed candle against the zone set.
// Returns nil when the zone-count gate fails or no configuration
// matches. Every returned setup carries the full zone set, the volume
// ratio and the spike flag for downstream scoring and levels.
func (d *Detector) Detect(candles []models.Candle, zoneSet models.ZoneSet) *models.Setup {
	if len(candles) < 2 {
		return nil
	}
	if d.minZones > 0 && zoneSet.Count() < d.minZones {
		return nil
	}

	curr := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	ratio := VolumeRatio(candles)
	spike := ratio >= d.spikeThreshold
	pattern := d.patterns.DetectReversalPattern(candles)

	setup := d.detectBreak(prev, curr, zoneSet, spike)
	if setup == nil {
		setup = d.detectPierceRejection(curr, zoneSet, spike)
	}
	if setup == nil {
		setup = d.detectRetest(candles, zoneSet, pattern)
	}
	if setup == nil {
		setup = d.detectReversal(curr, zoneSet, pattern)
	}
	if setup == nil {
		return nil
	}

	setup.Price = curr.Close
	setup.Zones = zoneSet
	setup.VolumeRatio = ratio
	setup.VolumeSpike = spike
	return setup
}

// detectBreak fires when the close crossed a zone's far edge between
// the previous candle and the current one. A volume spike confirms the
// break in its own direction; without one the move is treated as a trap
// and faded from the other side.
func (d *Detector) detectBreak(prev, curr models.Candle, set models.ZoneSet, spike bool) *models.Setup {
	if z := crossedUp(prev, curr, set.Resistance); z != nil {
		if spike {
			return &models.Setup{
				Type:   models.SetupBreakout,
				Side:   models.SideLong,
				Name:   fmt.Sprintf("breakout above %s", z.Key),
				Zone:   z,
				IsTrue: true,
			}
		}
		return &models.Setup{
			Type: models.SetupFalseBreakout,
			Side: models.SideShort,
			Name: fmt.Sprintf("false breakout above %s", z.Key),
			Zone: z,
		}
	}

	if z := crossedDown(prev, curr, set.Support); z != nil {
		if spike {
			return &models.Setup{
				Type:   models.SetupBreakdown,
				Side:   models.SideShort,
				Name:   fmt.Sprintf("breakdown below %s", z.Key),
				Zone:   z,
				IsTrue: true,
			}
		}
		return &models.Setup{
			Type: models.SetupFalseBreakdown,
			Side: models.SideLong,
			Name: fmt.Sprintf("false breakdown below %s", z.Key),
			Zone: z,
		}
	}

	return nil
}

// detectPierceRejection fades a wick that traded through a zone edge
// but closed back inside the band without volume behind the move.
func (d *Detector) detectPierceRejection(curr models.Candle, set models.ZoneSet, spike bool) *models.Setup {
	if spike {
		return nil
	}

	if z := piercedAbove(curr, set.Resistance); z != nil {
		return &models.Setup{
			Type: models.SetupFalseBreakout,
			Side: models.SideShort,
			Name: fmt.Sprintf("rejection above %s", z.Key),
			Zone: z,
		}
	}

	if z := piercedBelow(curr, set.Support); z != nil {
		return &models.Setup{
			Type: models.SetupFalseBreakdown,
			Side: models.SideLong,
			Name: fmt.Sprintf("rejection below %s", z.Key),
			Zone: z,
		}
	}

	return nil
}

// detectRetest looks for a close through a zone edge within the retest
// window, with the current candle tagging the zone from the break side
// and a pattern confirming the continuation.
func (d *Detector) detectRetest(candles []models.Candle, set models.ZoneSet, pattern *models.Pattern) *models.Setup {
	if pattern == nil || pattern.Type == models.Neutral {
		return nil
	}

	n := len(candles)
	curr := candles[n-1]
	start := n - 1 - d.retestWindow
	if start < 1 {
		start = 1
	}

	if pattern.Type == models.Bullish {
		for i := range set.Resistance {
			z := set.Resistance[i]
			if !brokeUpWithin(candles, start, z) {
				continue
			}
			if curr.Low <= z.Upper && curr.Close > z.Lower {
				return &models.Setup{
					Type:    models.SetupRetest,
					Side:    models.SideLong,
					Name:    fmt.Sprintf("retest of %s", z.Key),
					Zone:    &set.Resistance[i],
					Pattern: pattern,
				}
			}
		}
		return nil
	}

	for i := range set.Support {
		z := set.Support[i]
		if !brokeDownWithin(candles, start, z) {
			continue
		}
		if curr.High >= z.Lower && curr.Close < z.Upper {
			return &models.Setup{
				Type:    models.SetupRetest,
				Side:    models.SideShort,
				Name:    fmt.Sprintf("retest of %s", z.Key),
				Zone:    &set.Support[i],
				Pattern: pattern,
			}
		}
	}

	return nil
}

// detectReversal fires when the close sits inside a zone band and the
// recent candles printed a directional pattern against it. Neutral
// patterns such as a doji or an inside bar never seed a setup on their
// own.
func (d *Detector) detectReversal(curr models.Candle, set models.ZoneSet, pattern *models.Pattern) *models.Setup {
	if pattern == nil {
		return nil
	}

	switch pattern.Type {
	case models.Bullish:
		if z := containing(curr.Close, set.Support); z != nil {
			return &models.Setup{
				Type:    models.SetupReversal,
				Side:    models.SideLong,
				Name:    fmt.Sprintf("%s at %s", pattern.Name, z.Key),
				Zone:    z,
				Pattern: pattern,
			}
		}
	case models.Bearish:
		if z := containing(curr.Close, set.Resistance); z != nil {
			return &models.Setup{
				Type:    models.SetupReversal,
				Side:    models.SideShort,
				Name:    fmt.Sprintf("%s at %s", pattern.Name, z.Key),
				Zone:    z,
				Pattern: pattern,
			}
		}
	}

	return nil
}

// VolumeRatio compares the latest candle's volume against the average
// of up to volumeAvgPeriod candles before it. Returns 1 when no
// meaningful average exists.
func VolumeRatio(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 {
		return 1
	}

	start := n - 1 - volumeAvgPeriod
	if start < 0 {
		start = 0
	}

	var sum float64
	for _, c := range candles[start : n-1] {
		sum += c.Volume
	}
	if sum <= 0 {
		return 1
	}

	avg := sum / float64(n-1-start)
	return candles[n-1].Volume / avg
}

// crossedUp returns the resistance zone whose upper edge the close
// crossed this candle, preferring the highest edge when a single candle
// clears several stacked zones.
func crossedUp(prev, curr models.Candle, zones []models.Zone) *models.Zone {
	var best *models.Zone
	for i := range zones {
		z := zones[i]
		if prev.Close <= z.Upper && curr.Close > z.Upper {
			if best == nil || z.Upper > best.Upper {
				best = &zones[i]
			}
		}
	}
	return best
}

// crossedDown mirrors crossedUp for support zones, preferring the
// lowest crossed edge.
func crossedDown(prev, curr models.Candle, zones []models.Zone) *models.Zone {
	var best *models.Zone
	for i := range zones {
		z := zones[i]
		if prev.Close >= z.Lower && curr.Close < z.Lower {
			if best == nil || z.Lower < best.Lower {
				best = &zones[i]
			}
		}
	}
	return best
}

// piercedAbove requires the candle to have opened at or below the upper
// edge, so that a retest approaching from far above is not mistaken for
// a pierce-and-return.
func piercedAbove(c models.Candle, zones []models.Zone) *models.Zone {
	var best *models.Zone
	bestDist := 0.0
	for i := range zones {
		z := zones[i]
		if c.Open > z.Upper || c.High <= z.Upper || !z.Contains(c.Close) {
			continue
		}
		dist := math.Abs(c.Close - z.Center)
		if best == nil || dist < bestDist {
			best, bestDist = &zones[i], dist
		}
	}
	return best
}

func piercedBelow(c models.Candle, zones []models.Zone) *models.Zone {
	var best *models.Zone
	bestDist := 0.0
	for i := range zones {
		z := zones[i]
		if c.Open < z.Lower || c.Low >= z.Lower || !z.Contains(c.Close) {
			continue
		}
		dist := math.Abs(c.Close - z.Center)
		if best == nil || dist < bestDist {
			best, bestDist = &zones[i], dist
		}
	}
	return best
}

func containing(price float64, zones []models.Zone) *models.Zone {
	var best *models.Zone
	bestDist := 0.0
	for i := range zones {
		if !zones[i].Contains(price) {
			continue
		}
		dist := math.Abs(price - zones[i].Center)
		if best == nil || dist < bestDist {
			best, bestDist = &zones[i], dist
		}
	}
	return best
}

func brokeUpWithin(candles []models.Candle, start int, z models.Zone) bool {
	for j := start; j < len(candles)-1; j++ {
		if candles[j-1].Close <= z.Upper && candles[j].Close > z.Upper {
			return true
		}
	}
	return false
}

func brokeDownWithin(candles []models.Candle, start int, z models.Zone) bool {
	for j := start; j < len(candles)-1; j++ {
		if candles[j-1].Close >= z.Lower && candles[j].Close < z.Lower {
			return true
		}
	}
	return false
}
