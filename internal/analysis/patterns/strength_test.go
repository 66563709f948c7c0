package patterns

import (
	"math"
	"testing"

	"bybit-sentinel/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCandleStrength(t *testing.T) {
	tests := []struct {
		name          string
		c             models.Candle
		wantBody      float64
		wantCloseLoc  float64
		wantDirection models.Direction
		wantRejection *models.Rejection
	}{
		{
			name:          "strong bullish no rejection",
			c:             candle(100, 103.5, 99.5, 103),
			wantBody:      0.75,
			wantCloseLoc:  0.875,
			wantDirection: models.Bullish,
			wantRejection: nil,
		},
		{
			name:          "hammer rejects downside",
			c:             candle(100, 101.5, 92, 101),
			wantBody:      1.0 / 9.5,
			wantCloseLoc:  9.0 / 9.5,
			wantDirection: models.Bullish,
			wantRejection: &models.Rejection{Type: models.RejectionDownside, Strength: 8.0 / 9.5},
		},
		{
			name:          "long upper wick rejects upside",
			c:             candle(100.5, 108, 99.8, 100),
			wantBody:      0.5 / 8.2,
			wantCloseLoc:  0.2 / 8.2,
			wantDirection: models.Bearish,
			wantRejection: &models.Rejection{Type: models.RejectionUpside, Strength: 7.5 / 8.2},
		},
		{
			name:          "balanced wicks carry no rejection",
			c:             candle(100, 101, 99, 100),
			wantBody:      0,
			wantCloseLoc:  0.5,
			wantDirection: models.Neutral,
			wantRejection: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CandleStrength(tt.c)
			if !almostEqual(got.BodyPercent, tt.wantBody) {
				t.Errorf("BodyPercent = %.4f, want %.4f", got.BodyPercent, tt.wantBody)
			}
			if !almostEqual(got.CloseLocation, tt.wantCloseLoc) {
				t.Errorf("CloseLocation = %.4f, want %.4f", got.CloseLocation, tt.wantCloseLoc)
			}
			if got.Direction != tt.wantDirection {
				t.Errorf("Direction = %s, want %s", got.Direction, tt.wantDirection)
			}
			if (got.Rejection == nil) != (tt.wantRejection == nil) {
				t.Fatalf("Rejection = %+v, want %+v", got.Rejection, tt.wantRejection)
			}
			if got.Rejection != nil {
				if got.Rejection.Type != tt.wantRejection.Type {
					t.Errorf("Rejection.Type = %s, want %s", got.Rejection.Type, tt.wantRejection.Type)
				}
				if !almostEqual(got.Rejection.Strength, tt.wantRejection.Strength) {
					t.Errorf("Rejection.Strength = %.4f, want %.4f", got.Rejection.Strength, tt.wantRejection.Strength)
				}
			}
		})
	}
}

func TestCandleStrengthZeroRange(t *testing.T) {
	got := CandleStrength(candle(100, 100, 100, 100))
	if got.Direction != models.Neutral {
		t.Errorf("Direction = %s, want neutral", got.Direction)
	}
	if got.Rejection != nil {
		t.Errorf("Rejection = %+v, want nil", got.Rejection)
	}
	if got.BodyPercent != 0 || got.CloseLocation != 0 || got.UpperWickPercent != 0 || got.LowerWickPercent != 0 {
		t.Errorf("zero-range candle should zero all percentages, got %+v", got)
	}
}
