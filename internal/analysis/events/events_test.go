package events

import (
	"testing"
	"time"

	"bybit-sentinel/internal/models"
)

// flatCandles builds a flat series that individual tests then shape by
// overriding highs, lows, and the final close.
func flatCandles(n int) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			CloseTime: base.Add(time.Duration(i+1) * time.Hour),
			Open:      100,
			High:      100.5,
			Low:       99.5,
			Close:     100,
			Volume:    100,
			IsClosed:  true,
		}
	}
	return out
}

func setHigh(candles []models.Candle, i int, high float64) {
	candles[i].High = high
}

func setLow(candles []models.Candle, i int, low float64) {
	candles[i].Low = low
}

func setClose(candles []models.Candle, close float64) {
	last := len(candles) - 1
	candles[last].Close = close
	if close > candles[last].High {
		candles[last].High = close + 0.5
	}
	if close < candles[last].Low {
		candles[last].Low = close - 0.5
	}
}

func TestDetectBOSBullish(t *testing.T) {
	candles := flatCandles(20)
	setHigh(candles, 2, 105)
	setHigh(candles, 6, 107)
	setHigh(candles, 10, 109)
	setHigh(candles, 14, 111)
	setClose(candles, 112)

	got := DetectBOS(candles, []int{2, 6, 10, 14}, nil, 3)
	if got == nil {
		t.Fatal("expected a BOS, got nil")
	}
	if got.Type != models.EventBOS || got.Direction != models.Bullish {
		t.Errorf("got %s/%s, want BOS/bullish", got.Type, got.Direction)
	}
	if got.Price != 111 {
		t.Errorf("Price = %.2f, want broken level 111", got.Price)
	}
}

func TestDetectBOSBearish(t *testing.T) {
	candles := flatCandles(20)
	setLow(candles, 2, 99)
	setLow(candles, 6, 98)
	setLow(candles, 10, 97)
	setLow(candles, 14, 96)
	setClose(candles, 95)

	got := DetectBOS(candles, nil, []int{2, 6, 10, 14}, 3)
	if got == nil {
		t.Fatal("expected a BOS, got nil")
	}
	if got.Type != models.EventBOS || got.Direction != models.Bearish || got.Price != 96 {
		t.Errorf("got %s/%s/%.2f, want BOS/bearish/96", got.Type, got.Direction, got.Price)
	}
}

func TestDetectBOSNeedsPriorGroup(t *testing.T) {
	candles := flatCandles(20)
	setHigh(candles, 6, 107)
	setHigh(candles, 10, 109)
	setHigh(candles, 14, 111)
	setClose(candles, 112)

	if got := DetectBOS(candles, []int{6, 10, 14}, nil, 3); got != nil {
		t.Errorf("no prior pivot group, expected nil, got %+v", got)
	}
}

func TestDetectBOSBelowPriorPeak(t *testing.T) {
	// Clearing a local cluster that still sits under the prior peak is
	// not a continuation break.
	candles := flatCandles(20)
	setHigh(candles, 2, 120)
	setHigh(candles, 6, 107)
	setHigh(candles, 10, 109)
	setHigh(candles, 14, 111)
	setClose(candles, 112)

	if got := DetectBOS(candles, []int{2, 6, 10, 14}, nil, 3); got != nil {
		t.Errorf("expected nil under prior peak, got %+v", got)
	}
}

func TestDetectCHoCH(t *testing.T) {
	t.Run("uptrend loses its lows", func(t *testing.T) {
		candles := flatCandles(20)
		setLow(candles, 3, 95)
		setLow(candles, 8, 96)
		setLow(candles, 13, 97)
		setClose(candles, 94)

		got := DetectCHoCH(candles, models.StructureUp, nil, []int{3, 8, 13}, 3)
		if got == nil {
			t.Fatal("expected a CHoCH, got nil")
		}
		if got.Type != models.EventCHoCH || got.Direction != models.Bearish || got.Price != 95 {
			t.Errorf("got %s/%s/%.2f, want CHOCH/bearish/95", got.Type, got.Direction, got.Price)
		}
	})

	t.Run("downtrend reclaims its highs", func(t *testing.T) {
		candles := flatCandles(20)
		setHigh(candles, 3, 105)
		setHigh(candles, 8, 104)
		setHigh(candles, 13, 103)
		setClose(candles, 106)

		got := DetectCHoCH(candles, models.StructureDown, []int{3, 8, 13}, nil, 3)
		if got == nil {
			t.Fatal("expected a CHoCH, got nil")
		}
		if got.Type != models.EventCHoCH || got.Direction != models.Bullish || got.Price != 105 {
			t.Errorf("got %s/%s/%.2f, want CHOCH/bullish/105", got.Type, got.Direction, got.Price)
		}
	})

	t.Run("close holding above the lows is no event", func(t *testing.T) {
		candles := flatCandles(20)
		setLow(candles, 3, 95)
		setLow(candles, 8, 96)
		setLow(candles, 13, 97)
		setClose(candles, 96)

		if got := DetectCHoCH(candles, models.StructureUp, nil, []int{3, 8, 13}, 3); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("neutral trend never chochs", func(t *testing.T) {
		candles := flatCandles(20)
		setLow(candles, 3, 95)
		setClose(candles, 90)

		if got := DetectCHoCH(candles, models.StructureNeutral, nil, []int{3}, 3); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestDetectStructureEventsPrefersCHoCH(t *testing.T) {
	// Descending pivot lows and a close under them trigger a bearish
	// BOS; against an up trend the same break reads as a CHoCH, which
	// wins.
	candles := flatCandles(20)
	setLow(candles, 2, 99)
	setLow(candles, 6, 98)
	setLow(candles, 10, 97)
	setLow(candles, 14, 96)
	setClose(candles, 95)

	pivotLows := []int{2, 6, 10, 14}
	if bos := DetectBOS(candles, nil, pivotLows, DefaultLookback); bos == nil {
		t.Fatal("precondition failed: BOS should trigger")
	}

	got := DetectStructureEvents(candles, models.StructureUp, nil, pivotLows)
	if got == nil || got.Type != models.EventCHoCH {
		t.Fatalf("expected CHoCH preference, got %+v", got)
	}
}

func TestDetectStructureEventsFallsBackToBOS(t *testing.T) {
	candles := flatCandles(20)
	setHigh(candles, 2, 105)
	setHigh(candles, 6, 107)
	setHigh(candles, 10, 109)
	setHigh(candles, 14, 111)
	setClose(candles, 112)

	got := DetectStructureEvents(candles, models.StructureUp, []int{2, 6, 10, 14}, nil)
	if got == nil || got.Type != models.EventBOS || got.Direction != models.Bullish {
		t.Fatalf("expected bullish BOS fallback, got %+v", got)
	}
}
