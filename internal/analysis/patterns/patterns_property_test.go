package patterns

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

func patternCandleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Float64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High-c.Low < 1.0 {
			c.High = c.Low + 1.0
		}
		c.OpenTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c.CloseTime = c.OpenTime.Add(time.Hour)
		c.IsClosed = true
		return c
	})
}

// flipCandle reflects prices across a pivot above the generated range,
// turning upper wicks into lower wicks while keeping prices positive.
func flipCandle(c models.Candle) models.Candle {
	const pivot = 1100.0
	return models.Candle{
		OpenTime:  c.OpenTime,
		CloseTime: c.CloseTime,
		Open:      pivot - c.Open,
		High:      pivot - c.Low,
		Low:       pivot - c.High,
		Close:     pivot - c.Close,
		Volume:    c.Volume,
		IsClosed:  c.IsClosed,
	}
}

func TestProperty_SingleCandleMirror(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)
	d := NewDetector()

	properties.Property("flipping a candle swaps hammer and shooting star", prop.ForAll(
		func(c models.Candle) bool {
			got := d.DetectReversalPattern([]models.Candle{c})
			flipped := d.DetectReversalPattern([]models.Candle{flipCandle(c)})

			if (got == nil) != (flipped == nil) {
				return false
			}
			if got == nil {
				return true
			}
			if math.Abs(got.Strength-flipped.Strength) > 1e-9 {
				return false
			}
			switch got.Name {
			case "Hammer":
				return flipped.Name == "Shooting Star" && flipped.Type == models.Bearish
			case "Shooting Star":
				return flipped.Name == "Hammer" && flipped.Type == models.Bullish
			case "Doji":
				return flipped.Name == "Doji" && flipped.Type == models.Neutral
			default:
				return false
			}
		},
		patternCandleGen(),
	))

	properties.TestingRun(t)
}

func TestProperty_CandleStrengthAnatomy(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	properties.Property("body and wick shares partition the range", prop.ForAll(
		func(c models.Candle) bool {
			s := CandleStrength(c)
			sum := s.BodyPercent + s.UpperWickPercent + s.LowerWickPercent
			if math.Abs(sum-1.0) > 1e-9 {
				return false
			}
			return s.CloseLocation >= 0 && s.CloseLocation <= 1
		},
		patternCandleGen(),
	))

	properties.Property("flipping a candle mirrors its anatomy", prop.ForAll(
		func(c models.Candle) bool {
			s := CandleStrength(c)
			f := CandleStrength(flipCandle(c))

			if math.Abs(s.BodyPercent-f.BodyPercent) > 1e-9 {
				return false
			}
			if math.Abs(s.UpperWickPercent-f.LowerWickPercent) > 1e-9 {
				return false
			}
			if math.Abs(s.CloseLocation-(1-f.CloseLocation)) > 1e-9 {
				return false
			}
			switch s.Direction {
			case models.Bullish:
				if f.Direction != models.Bearish {
					return false
				}
			case models.Bearish:
				if f.Direction != models.Bullish {
					return false
				}
			default:
				if f.Direction != models.Neutral {
					return false
				}
			}
			if (s.Rejection == nil) != (f.Rejection == nil) {
				return false
			}
			if s.Rejection != nil {
				want := models.RejectionUpside
				if s.Rejection.Type == models.RejectionUpside {
					want = models.RejectionDownside
				}
				if f.Rejection.Type != want {
					return false
				}
				if math.Abs(s.Rejection.Strength-f.Rejection.Strength) > 1e-9 {
					return false
				}
			}
			return true
		},
		patternCandleGen(),
	))

	properties.TestingRun(t)
}
