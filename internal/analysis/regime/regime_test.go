package regime

import (
	"math"
	"testing"
	"time"

	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

func candleAt(i int, close, halfRange float64) models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Candle{
		OpenTime:  base.Add(time.Duration(i) * time.Hour),
		CloseTime: base.Add(time.Duration(i+1) * time.Hour),
		Open:      close,
		High:      close + halfRange,
		Low:       close - halfRange,
		Close:     close,
		Volume:    100,
		IsClosed:  true,
	}
}

func TestATRHandComputed(t *testing.T) {
	candles := []models.Candle{
		{Open: 8.5, High: 10, Low: 8, Close: 9},
		{Open: 9, High: 11, Low: 9, Close: 10},
		{Open: 10, High: 12, Low: 9.5, Close: 11},
	}

	got, err := ATR(candles, 2)
	if err != nil {
		t.Fatalf("ATR: %v", err)
	}
	// TRs: max(2,2,0)=2 and max(2.5,2,0.5)=2.5.
	if math.Abs(got-2.25) > 1e-9 {
		t.Errorf("ATR = %.4f, want 2.25", got)
	}
}

func TestATRErrors(t *testing.T) {
	candles := []models.Candle{candleAt(0, 100, 1), candleAt(1, 101, 1)}
	if _, err := ATR(candles, 0); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("period 0: got %v, want ErrConfigInvalid", err)
	}
	if _, err := ATR(candles, 14); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("short input: got %v, want ErrInsufficientData", err)
	}
}

func TestSlope(t *testing.T) {
	rising := make([]models.Candle, 20)
	flat := make([]models.Candle, 20)
	for i := range rising {
		rising[i] = candleAt(i, 100+float64(i), 0.5)
		flat[i] = candleAt(i, 100, 0.5)
	}

	got, err := Slope(rising, 20)
	if err != nil {
		t.Fatalf("Slope: %v", err)
	}
	// One unit per bar against an average close of 109.5.
	want := 100.0 / 109.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("rising slope = %.6f, want %.6f", got, want)
	}

	got, err = Slope(flat, 20)
	if err != nil {
		t.Fatalf("Slope: %v", err)
	}
	if got != 0 {
		t.Errorf("flat slope = %.6f, want 0", got)
	}

	if _, err := Slope(flat[:5], 20); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("short input: got %v, want ErrInsufficientData", err)
	}
}

func quietThenWild(n, flip int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		if i < flip {
			candles[i] = candleAt(i, 100, 0.25)
		} else {
			close := 97.0
			if i%2 == 0 {
				close = 103.0
			}
			candles[i] = candleAt(i, close, 3)
		}
	}
	return candles
}

func wildThenQuiet(n, flip int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		if i < flip {
			close := 97.0
			if i%2 == 0 {
				close = 103.0
			}
			candles[i] = candleAt(i, close, 3)
		} else {
			candles[i] = candleAt(i, 100, 0.2)
		}
	}
	return candles
}

func TestDetectMarketRegime(t *testing.T) {
	t.Run("volatility burst is expansion", func(t *testing.T) {
		got, err := DetectMarketRegime(quietThenWild(50, 30), models.StructureNeutral)
		if err != nil {
			t.Fatalf("DetectMarketRegime: %v", err)
		}
		if got.Type != models.RegimeExpansion {
			t.Errorf("Type = %s, want expansion (ratio %.2f)", got.Type, got.ATRRatio)
		}
		if got.ATRRatio <= expansionRatio {
			t.Errorf("ATRRatio = %.2f, want > %.2f", got.ATRRatio, expansionRatio)
		}
	})

	t.Run("steady climb with structure is trend_up", func(t *testing.T) {
		candles := make([]models.Candle, 50)
		for i := range candles {
			candles[i] = candleAt(i, 100+float64(i), 0.5)
		}
		got, err := DetectMarketRegime(candles, models.StructureUp)
		if err != nil {
			t.Fatalf("DetectMarketRegime: %v", err)
		}
		if got.Type != models.RegimeTrendUp {
			t.Errorf("Type = %s, want trend_up (slope %.3f)", got.Type, got.Slope)
		}
		if got.Confidence < 0.6 {
			t.Errorf("Confidence = %.2f, want >= 0.6", got.Confidence)
		}
	})

	t.Run("slope conflicting with structure falls back", func(t *testing.T) {
		candles := make([]models.Candle, 50)
		for i := range candles {
			candles[i] = candleAt(i, 100+float64(i), 0.5)
		}
		got, err := DetectMarketRegime(candles, models.StructureDown)
		if err != nil {
			t.Fatalf("DetectMarketRegime: %v", err)
		}
		if got.Type != models.RegimeTrendDown {
			t.Errorf("Type = %s, want structure fallback trend_down", got.Type)
		}
		if got.Confidence != 0.4 {
			t.Errorf("Confidence = %.2f, want 0.4", got.Confidence)
		}
	})

	t.Run("volatility collapse with flat slope is range", func(t *testing.T) {
		got, err := DetectMarketRegime(wildThenQuiet(50, 30), models.StructureNeutral)
		if err != nil {
			t.Fatalf("DetectMarketRegime: %v", err)
		}
		if got.Type != models.RegimeRange {
			t.Errorf("Type = %s, want range (ratio %.2f slope %.3f)", got.Type, got.ATRRatio, got.Slope)
		}
		if got.Confidence != 0.7 {
			t.Errorf("Confidence = %.2f, want 0.7", got.Confidence)
		}
	})

	t.Run("no signal falls back on neutral structure", func(t *testing.T) {
		candles := make([]models.Candle, 50)
		for i := range candles {
			candles[i] = candleAt(i, 100, 0.5)
		}
		got, err := DetectMarketRegime(candles, models.StructureNeutral)
		if err != nil {
			t.Fatalf("DetectMarketRegime: %v", err)
		}
		if got.Type != models.RegimeRange || got.Confidence != 0.3 {
			t.Errorf("got %s/%.2f, want range/0.30", got.Type, got.Confidence)
		}
	})

	t.Run("insufficient data errors", func(t *testing.T) {
		candles := make([]models.Candle, 20)
		for i := range candles {
			candles[i] = candleAt(i, 100, 0.5)
		}
		if _, err := DetectMarketRegime(candles, models.StructureNeutral); !errors.Is(err, errors.ErrInsufficientData) {
			t.Errorf("got %v, want ErrInsufficientData", err)
		}
	})
}
