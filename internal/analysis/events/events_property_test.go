package events

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bybit-sentinel/internal/analysis/pivots"
	"bybit-sentinel/internal/models"
)

func eventCandleGen() gopter.Gen {
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

func eventCandleSliceGen(minLen, maxLen int) gopter.Gen {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return gen.SliceOfN(maxLen, eventCandleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		for i := range candles {
			candles[i].OpenTime = base.Add(time.Duration(i) * time.Hour)
			candles[i].CloseTime = candles[i].OpenTime.Add(time.Hour)
			candles[i].IsClosed = true
		}
		return candles
	})
}

func negated(candles []models.Candle) []models.Candle {
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

func flipTrend(trend models.Structure) models.Structure {
	switch trend {
	case models.StructureUp:
		return models.StructureDown
	case models.StructureDown:
		return models.StructureUp
	default:
		return models.StructureNeutral
	}
}

func TestProperty_StructureEventMirror(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	trendGen := gen.OneConstOf(models.StructureUp, models.StructureDown, models.StructureNeutral)

	properties.Property("negating prices mirrors detected events", prop.ForAll(
		func(candles []models.Candle, trend models.Structure) bool {
			const w = 3
			highs := pivots.Highs(candles, w)
			lows := pivots.Lows(candles, w)
			got := DetectStructureEvents(candles, trend, highs, lows)

			mirror := negated(candles)
			mHighs := pivots.Highs(mirror, w)
			mLows := pivots.Lows(mirror, w)
			flipped := DetectStructureEvents(mirror, flipTrend(trend), mHighs, mLows)

			if (got == nil) != (flipped == nil) {
				return false
			}
			if got == nil {
				return true
			}
			if got.Type != flipped.Type {
				return false
			}
			if got.Price != -flipped.Price {
				return false
			}
			switch got.Direction {
			case models.Bullish:
				return flipped.Direction == models.Bearish
			case models.Bearish:
				return flipped.Direction == models.Bullish
			default:
				return false
			}
		},
		eventCandleSliceGen(20, 120),
		trendGen,
	))

	properties.TestingRun(t)
}
