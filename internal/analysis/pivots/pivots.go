// Package pivots detects swing highs and swing lows over a symmetric
// window. A pivot is strict: any tie inside the window rejects it.
package pivots

import "bybit-sentinel/internal/models"

// DefaultWindow is the pivot window used when none is configured.
const DefaultWindow = 5

// Highs returns the indices i in [w, n-w-1] whose high is the strict
// maximum over [i-w, i+w].
func Highs(candles []models.Candle, window int) []int {
	if window < 1 || len(candles) < 2*window+1 {
		return nil
	}

	var idx []int
	for i := window; i < len(candles)-window; i++ {
		isPivot := true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isPivot = false
				break
			}
		}
		if isPivot {
			idx = append(idx, i)
		}
	}
	return idx
}

// Lows returns the indices i in [w, n-w-1] whose low is the strict
// minimum over [i-w, i+w].
func Lows(candles []models.Candle, window int) []int {
	if window < 1 || len(candles) < 2*window+1 {
		return nil
	}

	var idx []int
	for i := window; i < len(candles)-window; i++ {
		isPivot := true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= candles[i].Low {
				isPivot = false
				break
			}
		}
		if isPivot {
			idx = append(idx, i)
		}
	}
	return idx
}

// RecentHighs returns the last k pivot-high indices.
func RecentHighs(candles []models.Candle, window, k int) []int {
	return lastK(Highs(candles, window), k)
}

// RecentLows returns the last k pivot-low indices.
func RecentLows(candles []models.Candle, window, k int) []int {
	return lastK(Lows(candles, window), k)
}

func lastK(idx []int, k int) []int {
	if k <= 0 || len(idx) == 0 {
		return nil
	}
	if k >= len(idx) {
		return idx
	}
	return idx[len(idx)-k:]
}
