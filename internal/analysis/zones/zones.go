// Package zones builds horizontal support and resistance zones by
// clustering pivot extremes into merged price bands.
package zones

import (
	"math"
	"sort"

	"bybit-sentinel/internal/analysis/pivots"
	"bybit-sentinel/internal/models"
)

// maxSeedsPerSide caps how many recent pivots seed zones on each side.
const maxSeedsPerSide = 20

// Builder constructs support and resistance zones from candle history.
type Builder struct {
	lookback  int     // Number of recent candles to scan for pivots
	window    int     // Pivot confirmation window on each side
	tolerance float64 // Half-width of a zone as a fraction of its center
}

// NewBuilder creates a zone builder.
func NewBuilder(lookback, window int, tolerance float64) *Builder {
	return &Builder{
		lookback:  lookback,
		window:    window,
		tolerance: tolerance,
	}
}

// Build derives merged support and resistance zones from the most recent
// candles. Pivot highs seed resistance zones and pivot lows seed support
// zones; seeds whose centers sit within twice the tolerance of each other
// collapse into a single zone.
func (b *Builder) Build(candles []models.Candle) models.ZoneSet {
	if b.lookback > 0 && len(candles) > b.lookback {
		candles = candles[len(candles)-b.lookback:]
	}

	var set models.ZoneSet
	if len(candles) < b.window*2+1 {
		return set
	}

	highIdx := pivots.RecentHighs(candles, b.window, maxSeedsPerSide)
	lowIdx := pivots.RecentLows(candles, b.window, maxSeedsPerSide)

	resistance := make([]models.Zone, 0, len(highIdx))
	for _, i := range highIdx {
		resistance = append(resistance, models.NewZone(models.ZoneResistance, candles[i].High, b.tolerance, candles[i].OpenTime))
	}
	support := make([]models.Zone, 0, len(lowIdx))
	for _, i := range lowIdx {
		support = append(support, models.NewZone(models.ZoneSupport, candles[i].Low, b.tolerance, candles[i].OpenTime))
	}

	set.Resistance = Merge(resistance, b.tolerance)
	set.Support = Merge(support, b.tolerance)
	return set
}

// Merge collapses zones whose centers lie within twice the tolerance of each
// other. Centers are averaged weighted by touches, bounds are unioned and
// touch counts summed. The result is sorted by center ascending and is stable
// under repeated merging. The input slice is not modified.
func Merge(zones []models.Zone, tolerance float64) []models.Zone {
	if len(zones) == 0 {
		return nil
	}

	sorted := make([]models.Zone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Center < sorted[j].Center
	})

	merged := make([]models.Zone, 0, len(sorted))
	current := sorted[0]
	if current.Touches < 1 {
		current.Touches = 1
	}

	for i := 1; i < len(sorted); i++ {
		z := sorted[i]
		if z.Touches < 1 {
			z.Touches = 1
		}

		// Candidates are sorted, so the center delta is non-negative.
		if z.Center-current.Center <= 2*tolerance*current.Center {
			total := current.Touches + z.Touches
			current.Center = (current.Center*float64(current.Touches) + z.Center*float64(z.Touches)) / float64(total)
			current.Touches = total
			current.Lower = math.Min(current.Lower, z.Lower)
			current.Upper = math.Max(current.Upper, z.Upper)
			if z.Timestamp.After(current.Timestamp) {
				current.Timestamp = z.Timestamp
			}
			current.Key = models.ZoneKey(current.Type, current.Center)
		} else {
			merged = append(merged, current)
			current = z
		}
	}
	merged = append(merged, current)

	return merged
}

// IsTouching reports whether price lies inside the zone band.
func IsTouching(price float64, zone models.Zone) bool {
	return zone.Contains(price)
}

// NearestZone returns the zone whose center is closest to price, provided
// the distance relative to price does not exceed maxDist. Returns nil when
// no zone qualifies.
func NearestZone(price float64, zones []models.Zone, maxDist float64) *models.Zone {
	if price <= 0 {
		return nil
	}

	var nearest *models.Zone
	best := math.MaxFloat64
	for i := range zones {
		dist := math.Abs(zones[i].Center - price)
		if dist/price > maxDist {
			continue
		}
		if dist < best {
			best = dist
			z := zones[i]
			nearest = &z
		}
	}
	return nearest
}

// FindNextOpposingZones returns up to k zones on the profit side of entry,
// nearest first: resistance above entry for longs, support below for shorts.
func FindNextOpposingZones(entry float64, set models.ZoneSet, side models.Side, k int) []models.Zone {
	var candidates []models.Zone

	switch side {
	case models.SideLong:
		for _, z := range set.Resistance {
			if z.Center > entry {
				candidates = append(candidates, z)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Center < candidates[j].Center
		})
	case models.SideShort:
		for _, z := range set.Support {
			if z.Center < entry {
				candidates = append(candidates, z)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Center > candidates[j].Center
		})
	}

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// FindStopLossZone returns the nearest zone on the loss side of entry:
// support below entry for longs, resistance above entry for shorts.
// Returns nil when no zone sits on that side.
func FindStopLossZone(entry float64, set models.ZoneSet, side models.Side) *models.Zone {
	var nearest *models.Zone
	best := math.MaxFloat64

	switch side {
	case models.SideLong:
		for i := range set.Support {
			z := set.Support[i]
			if z.Center >= entry {
				continue
			}
			if d := entry - z.Center; d < best {
				best = d
				nearest = &z
			}
		}
	case models.SideShort:
		for i := range set.Resistance {
			z := set.Resistance[i]
			if z.Center <= entry {
				continue
			}
			if d := z.Center - entry; d < best {
				best = d
				nearest = &z
			}
		}
	}

	return nearest
}
