package indicators

import (
	"math"
	"testing"

	"bybit-sentinel/internal/errors"
)

func TestRSIHandComputed(t *testing.T) {
	closes := []float64{10, 11, 10.5, 11.5}

	got, err := RSI(closes, 2)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}

	// Seed: avgGain=(1+0)/2, avgLoss=(0+0.5)/2, rs=2 -> 66.67.
	// Next: avgGain=(0.5+1)/2, avgLoss=0.25/2, rs=6 -> 85.71.
	want := []float64{0, 0, 200.0 / 3.0, 600.0 / 7.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("rsi[%d] = %.6f, want %.6f", i, got[i], want[i])
		}
	}
}

func TestRSIMonotoneExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 200 - float64(i)
	}

	gotUp, err := RSI(up, DefaultRSIPeriod)
	if err != nil {
		t.Fatalf("RSI up: %v", err)
	}
	gotDown, err := RSI(down, DefaultRSIPeriod)
	if err != nil {
		t.Fatalf("RSI down: %v", err)
	}

	for i := DefaultRSIPeriod; i < len(up); i++ {
		if gotUp[i] != 100 {
			t.Errorf("rising series rsi[%d] = %.4f, want 100", i, gotUp[i])
		}
		if gotDown[i] != 0 {
			t.Errorf("falling series rsi[%d] = %.4f, want 0", i, gotDown[i])
		}
	}
}

func TestRSIErrors(t *testing.T) {
	if _, err := RSI([]float64{1, 2, 3}, 0); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("period 0: got %v, want ErrConfigInvalid", err)
	}
	if _, err := RSI(make([]float64, 10), 14); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("short input: got %v, want ErrInsufficientData", err)
	}
}
