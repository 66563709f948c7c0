package levels

import (
	"math"
	"testing"
	"time"

	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

func zone(zt models.ZoneType, center, lower, upper float64) models.Zone {
	return models.Zone{
		Type:      zt,
		Center:    center,
		Lower:     lower,
		Upper:     upper,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Touches:   2,
		Key:       models.ZoneKey(zt, center),
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %.6f, want %.6f", name, got, want)
	}
}

func TestCalculateLongLaddersAcrossZones(t *testing.T) {
	set := models.ZoneSet{
		Support:    []models.Zone{zone(models.ZoneSupport, 98, 97.5, 98.5)},
		Resistance: []models.Zone{zone(models.ZoneResistance, 104, 103.5, 104.5), zone(models.ZoneResistance, 108, 107.5, 108.5)},
	}
	setup := &models.Setup{Type: models.SetupReversal, Side: models.SideLong, Price: 100, Zones: set}

	l, err := NewCalculator(0.001).Calculate(setup)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	wantSL := 97.5 * 0.999
	approx(t, "stop loss", l.StopLoss, wantSL)
	if l.SLZone == nil || l.SLZone.Key != models.ZoneKey(models.ZoneSupport, 98) {
		t.Errorf("stop not anchored on the support zone: %+v", l.SLZone)
	}

	approx(t, "tp1", l.TakeProfit1, 104)
	approx(t, "tp2", l.TakeProfit2, 108)
	if len(l.TPZones) != 2 {
		t.Errorf("tp zones = %d, want 2", len(l.TPZones))
	}

	risk := 100 - wantSL
	approx(t, "rr1", l.RiskReward1, 4/risk)
	approx(t, "rr2", l.RiskReward2, 8/risk)
}

func TestCalculateLongDropsTP2BehindTP1(t *testing.T) {
	// A tight stop makes the 3R extension land below the only target
	// zone, so no second target is published.
	set := models.ZoneSet{
		Support:    []models.Zone{zone(models.ZoneSupport, 99.6, 99.5, 99.7)},
		Resistance: []models.Zone{zone(models.ZoneResistance, 104, 103.5, 104.5)},
	}
	setup := &models.Setup{Type: models.SetupRetest, Side: models.SideLong, Price: 100, Zones: set}

	l, err := NewCalculator(0.001).Calculate(setup)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	approx(t, "tp1", l.TakeProfit1, 104)
	if l.TakeProfit2 != 0 {
		t.Errorf("tp2 = %.4f, want 0 when the extension does not clear tp1", l.TakeProfit2)
	}
	if l.RiskReward2 != 0 {
		t.Errorf("rr2 = %.4f, want 0 without a second target", l.RiskReward2)
	}
}

func TestCalculateShortMirrorsSides(t *testing.T) {
	set := models.ZoneSet{
		Support:    []models.Zone{zone(models.ZoneSupport, 96, 95.5, 96.5), zone(models.ZoneSupport, 92, 91.5, 92.5)},
		Resistance: []models.Zone{zone(models.ZoneResistance, 102, 101.5, 102.5)},
	}
	setup := &models.Setup{Type: models.SetupBreakdown, Side: models.SideShort, Price: 100, IsTrue: true, Zones: set}

	l, err := NewCalculator(0.001).Calculate(setup)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	wantSL := 102.5 * 1.001
	approx(t, "stop loss", l.StopLoss, wantSL)
	approx(t, "tp1", l.TakeProfit1, 96)
	approx(t, "tp2", l.TakeProfit2, 92)

	risk := wantSL - 100
	approx(t, "rr1", l.RiskReward1, 4/risk)
	approx(t, "rr2", l.RiskReward2, 8/risk)
}

func TestCalculateFallsBackToRiskMultiplesWithoutZones(t *testing.T) {
	setup := &models.Setup{Type: models.SetupReversal, Side: models.SideLong, Price: 100}

	l, err := NewCalculator(0.001).Calculate(setup)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	approx(t, "stop loss", l.StopLoss, 99)
	approx(t, "tp1", l.TakeProfit1, 101.5)
	approx(t, "tp2", l.TakeProfit2, 103)
	approx(t, "rr1", l.RiskReward1, 1.5)
	approx(t, "rr2", l.RiskReward2, 3.0)
	if l.SLZone != nil {
		t.Errorf("flat-percent stop should carry no zone, got %+v", l.SLZone)
	}
}

func TestCalculateStopsBehindSetupZoneWhenSetHasNoneBelow(t *testing.T) {
	anchor := zone(models.ZoneSupport, 97, 96.5, 97.5)
	setup := &models.Setup{Type: models.SetupReversal, Side: models.SideLong, Price: 100, Zone: &anchor}

	l, err := NewCalculator(0.001).Calculate(setup)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	approx(t, "stop loss", l.StopLoss, 96.5*0.999)
	if l.SLZone == nil || l.SLZone.Key != anchor.Key {
		t.Errorf("stop not anchored on the setup zone: %+v", l.SLZone)
	}
}

func TestCalculateRejectsMissingOrPricelessSetup(t *testing.T) {
	c := NewCalculator(0.001)
	if _, err := c.Calculate(nil); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("nil setup: got %v, want ErrInsufficientData", err)
	}
	if _, err := c.Calculate(&models.Setup{Side: models.SideLong}); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("zero price: got %v, want ErrInsufficientData", err)
	}
}

func TestCalculateRejectsUnknownSide(t *testing.T) {
	setup := &models.Setup{Type: models.SetupReversal, Side: models.Side("SIDEWAYS"), Price: 100}
	if _, err := NewCalculator(0.001).Calculate(setup); !errors.Is(err, errors.ErrConfigInvalid) {
		t.Errorf("got %v, want ErrConfigInvalid", err)
	}
}

func TestCalculateRejectsInvertedStop(t *testing.T) {
	// A malformed zone whose band sits above its center pushes the stop
	// through the entry; validation refuses to publish such levels.
	set := models.ZoneSet{
		Support:    []models.Zone{{Type: models.ZoneSupport, Center: 99.9, Lower: 100.5, Upper: 101, Key: "support_99.90"}},
		Resistance: []models.Zone{zone(models.ZoneResistance, 104, 103.5, 104.5)},
	}
	setup := &models.Setup{Type: models.SetupReversal, Side: models.SideLong, Price: 100, Zones: set}

	if _, err := NewCalculator(0.001).Calculate(setup); err == nil {
		t.Fatal("expected validation to reject a stop above the entry")
	}
}
