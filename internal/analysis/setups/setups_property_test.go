package setups

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bybit-sentinel/internal/analysis/zones"
	"bybit-sentinel/internal/models"
)

func setupCandleGen() gopter.Gen {
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

func setupCandleSliceGen(minLen, maxLen int) gopter.Gen {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return gen.SliceOfN(maxLen, setupCandleGen()).Map(func(candles []models.Candle) []models.Candle {
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

// TestProperty_SetupConsistency checks the structural contract of every
// detection over random series and zones built from them: the anchor
// zone, full zone set, price and direction flags all line up with the
// setup type.
func TestProperty_SetupConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	builder := zones.NewBuilder(40, 3, 0.01)
	detector := NewDetector(0, 1.5)

	properties.Property("detections are internally consistent", prop.ForAll(
		func(candles []models.Candle) bool {
			set := builder.Build(candles)
			setup := detector.Detect(candles, set)
			if setup == nil {
				return true
			}

			last := candles[len(candles)-1]
			if setup.Price != last.Close {
				return false
			}
			if setup.Zone == nil || setup.Zones.Count() != set.Count() {
				return false
			}
			if setup.VolumeRatio <= 0 || math.IsNaN(setup.VolumeRatio) {
				return false
			}

			switch setup.Type {
			case models.SetupBreakout:
				return setup.Side == models.SideLong && setup.IsTrue && setup.VolumeSpike
			case models.SetupBreakdown:
				return setup.Side == models.SideShort && setup.IsTrue && setup.VolumeSpike
			case models.SetupFalseBreakout:
				return setup.Side == models.SideShort && !setup.IsTrue
			case models.SetupFalseBreakdown:
				return setup.Side == models.SideLong && !setup.IsTrue
			case models.SetupReversal, models.SetupRetest:
				if setup.Pattern == nil || setup.Pattern.Type == models.Neutral || setup.IsTrue {
					return false
				}
				if setup.Pattern.Type == models.Bullish {
					return setup.Side == models.SideLong
				}
				return setup.Side == models.SideShort
			default:
				return false
			}
		},
		setupCandleSliceGen(30, 60),
	))

	properties.Property("an unmet zone minimum always gates", prop.ForAll(
		func(candles []models.Candle) bool {
			set := builder.Build(candles)
			gated := NewDetector(set.Count()+1, 1.5)
			return gated.Detect(candles, set) == nil
		},
		setupCandleSliceGen(30, 60),
	))

	properties.Property("an unreachable spike threshold never confirms a break", prop.ForAll(
		func(candles []models.Candle) bool {
			set := builder.Build(candles)
			cautious := NewDetector(0, math.MaxFloat64)
			setup := cautious.Detect(candles, set)
			if setup == nil {
				return true
			}
			return setup.Type != models.SetupBreakout && setup.Type != models.SetupBreakdown && !setup.VolumeSpike
		},
		setupCandleSliceGen(30, 60),
	))

	properties.TestingRun(t)
}
