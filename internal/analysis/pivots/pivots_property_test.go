package pivots

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bybit-sentinel/internal/models"
)

func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Float64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

func candleSliceGen(minLen, maxLen int) gopter.Gen {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		if len(candles) < minLen {
			for len(candles) < minLen {
				candles = append(candles, candles[len(candles)-1])
			}
		}
		for i := range candles {
			candles[i].OpenTime = base.Add(time.Duration(i) * time.Hour)
			candles[i].CloseTime = candles[i].OpenTime.Add(time.Hour)
			candles[i].IsClosed = true
		}
		return candles
	})
}

func reversed(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		out[len(candles)-1-i] = c
	}
	return out
}

// inverted mirrors all prices across zero, turning highs into lows.
func inverted(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		out[i] = models.Candle{
			OpenTime:  c.OpenTime,
			CloseTime: c.CloseTime,
			Open:      -c.Open,
			High:      -c.Low,
			Low:       -c.High,
			Close:     -c.Close,
			Volume:    c.Volume,
			IsClosed:  c.IsClosed,
		}
	}
	return out
}

func TestProperty_PivotDefinition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("an index is a pivot high iff its high is the strict window max", prop.ForAll(
		func(candles []models.Candle) bool {
			const w = 3
			highs := Highs(candles, w)
			isPivot := make(map[int]bool, len(highs))
			for _, i := range highs {
				isPivot[i] = true
			}

			for i := w; i < len(candles)-w; i++ {
				strictMax := true
				for j := i - w; j <= i+w; j++ {
					if j != i && candles[j].High >= candles[i].High {
						strictMax = false
						break
					}
				}
				if strictMax != isPivot[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(7, 80),
	))

	properties.TestingRun(t)
}

func TestProperty_PivotSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("mirroring prices swaps pivot highs and lows", prop.ForAll(
		func(candles []models.Candle) bool {
			const w = 3
			highs := Highs(candles, w)
			lowsOfMirror := Lows(inverted(candles), w)

			if len(highs) != len(lowsOfMirror) {
				return false
			}
			for i := range highs {
				if highs[i] != lowsOfMirror[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(7, 80),
	))

	properties.Property("time reversal remaps pivot highs to n-1-i", prop.ForAll(
		func(candles []models.Candle) bool {
			const w = 3
			n := len(candles)
			highs := Highs(candles, w)
			revHighs := Highs(reversed(candles), w)

			remapped := make(map[int]bool, len(revHighs))
			for _, i := range revHighs {
				remapped[n-1-i] = true
			}
			if len(highs) != len(revHighs) {
				return false
			}
			for _, i := range highs {
				if !remapped[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(7, 80),
	))

	properties.TestingRun(t)
}

func TestPivotsKnownShape(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	highs := []float64{10, 11, 12, 13, 14, 13, 12, 11, 10}
	candles := make([]models.Candle, len(highs))
	for i, h := range highs {
		candles[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      h - 1,
			High:      h,
			Low:       h - 2,
			Close:     h - 0.5,
			Volume:    100,
			IsClosed:  true,
		}
	}

	got := Highs(candles, 2)
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("expected single pivot high at index 4, got %v", got)
	}
	if lows := Lows(candles, 2); len(lows) != 0 {
		t.Errorf("expected no pivot lows on a tent shape, got %v", lows)
	}
}

func TestPivotsRejectTies(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	highs := []float64{10, 11, 14, 13, 14, 12, 11}
	candles := make([]models.Candle, len(highs))
	for i, h := range highs {
		candles[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      h - 1,
			High:      h,
			Low:       h - 2,
			Close:     h - 0.5,
			Volume:    100,
			IsClosed:  true,
		}
	}

	// Index 2 and 4 share the max high inside each other's window.
	if got := Highs(candles, 2); len(got) != 0 {
		t.Fatalf("expected ties to reject both pivots, got %v", got)
	}
}

func TestRecentPivots(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Alternating peaks at indices 2, 6, 10.
	highs := []float64{10, 11, 15, 11, 10, 11, 16, 11, 10, 11, 17, 11, 10}
	candles := make([]models.Candle, len(highs))
	for i, h := range highs {
		candles[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      h - 1,
			High:      h,
			Low:       h - 2,
			Close:     h - 0.5,
			Volume:    100,
			IsClosed:  true,
		}
	}

	all := Highs(candles, 2)
	if len(all) != 3 {
		t.Fatalf("expected 3 pivot highs, got %v", all)
	}
	recent := RecentHighs(candles, 2, 2)
	if len(recent) != 2 || recent[0] != 6 || recent[1] != 10 {
		t.Fatalf("expected last two pivots [6 10], got %v", recent)
	}
}
