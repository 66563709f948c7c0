package regime

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

func regimeCandleGen() gopter.Gen {
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

func regimeCandleSliceGen(minLen, maxLen int) gopter.Gen {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return gen.SliceOfN(maxLen, regimeCandleGen()).Map(func(candles []models.Candle) []models.Candle {
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

func TestProperty_RegimeBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	structGen := gen.OneConstOf(models.StructureUp, models.StructureDown, models.StructureNeutral)

	properties.Property("confidence stays in [0.3, 1.0] with a non-empty type", prop.ForAll(
		func(candles []models.Candle, structure models.Structure) bool {
			regime, err := DetectMarketRegime(candles, structure)
			if err != nil {
				return false
			}
			if regime.Confidence < 0.3 || regime.Confidence > 1.0 {
				return false
			}
			if regime.ATRRatio < 0 {
				return false
			}
			return regime.Type != ""
		},
		regimeCandleSliceGen(45, 120),
		structGen,
	))

	properties.Property("ATR is non-negative and scales with price", prop.ForAll(
		func(candles []models.Candle) bool {
			atr, err := ATR(candles, DefaultATRPeriod)
			if err != nil || atr < 0 {
				return false
			}
			scaled := make([]models.Candle, len(candles))
			for i, c := range candles {
				scaled[i] = c
				scaled[i].Open *= 3
				scaled[i].High *= 3
				scaled[i].Low *= 3
				scaled[i].Close *= 3
			}
			scaledATR, err := ATR(scaled, DefaultATRPeriod)
			if err != nil {
				return false
			}
			return math.Abs(scaledATR-3*atr) < 1e-6
		},
		regimeCandleSliceGen(45, 120),
	))

	properties.Property("normalised slope is invariant under price scaling", prop.ForAll(
		func(candles []models.Candle) bool {
			a, err := Slope(candles, DefaultSlopePeriod)
			if err != nil {
				return false
			}
			scaled := make([]models.Candle, len(candles))
			for i, c := range candles {
				scaled[i] = c
				scaled[i].Close *= 3
			}
			b, err := Slope(scaled, DefaultSlopePeriod)
			if err != nil {
				return false
			}
			return math.Abs(a-b) < 1e-6
		},
		regimeCandleSliceGen(45, 120),
	))

	properties.TestingRun(t)
}
