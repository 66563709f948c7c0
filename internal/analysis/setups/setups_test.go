package setups

import (
	"testing"
	"time"

	"bybit-sentinel/internal/models"
)

func candle(open, high, low, close, volume float64) models.Candle {
	return models.Candle{
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
		IsClosed: true,
	}
}

func series(candles ...models.Candle) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i].OpenTime = base.Add(time.Duration(i) * time.Hour)
		candles[i].CloseTime = candles[i].OpenTime.Add(time.Hour)
	}
	return candles
}

// flat is a filler candle that triggers no pattern: body 20% of range,
// neither wick dominant.
func flat() models.Candle {
	return candle(100, 100.5, 99.5, 100.2, 1000)
}

func flatSeries(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = flat()
	}
	return out
}

func zoneAt(typ models.ZoneType, center float64) models.Zone {
	return models.NewZone(typ, center, 0.005, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestDetectReversalAtSupport(t *testing.T) {
	// 21 filler candles then a hammer closing inside the support band
	// with 1.85x volume. The hammer's high pokes above the previous
	// candle so it cannot read as an inside bar, and its low stays
	// inside the band so it cannot read as a pierce.
	candles := append(flatSeries(21), candle(100.3, 100.55, 99.6, 100.45, 1850))
	candles = series(candles...)
	set := models.ZoneSet{
		Support:    []models.Zone{zoneAt(models.ZoneSupport, 100)},
		Resistance: []models.Zone{zoneAt(models.ZoneResistance, 110)},
	}

	setup := NewDetector(0, 1.5).Detect(candles, set)
	if setup == nil {
		t.Fatal("expected a reversal setup, got nil")
	}
	if setup.Type != models.SetupReversal {
		t.Fatalf("type = %s, want %s", setup.Type, models.SetupReversal)
	}
	if setup.Side != models.SideLong {
		t.Errorf("side = %s, want LONG", setup.Side)
	}
	if setup.Zone == nil || setup.Zone.Key != "support_100.00" {
		t.Errorf("zone = %+v, want support_100.00", setup.Zone)
	}
	if setup.Pattern == nil || setup.Pattern.Name != "Hammer" {
		t.Errorf("pattern = %+v, want Hammer", setup.Pattern)
	}
	if setup.Price != 100.45 {
		t.Errorf("price = %.4f, want the latest close 100.45", setup.Price)
	}
	if setup.VolumeRatio != 1.85 {
		t.Errorf("volume ratio = %.4f, want 1.85", setup.VolumeRatio)
	}
	if !setup.VolumeSpike {
		t.Error("expected the volume spike flag")
	}
	if setup.IsTrue {
		t.Error("reversal setups should not carry the true-break flag")
	}
	if setup.Zones.Count() != 2 {
		t.Errorf("zones count = %d, want the full set", setup.Zones.Count())
	}
	if setup.ZoneKey() != "support_100.00" {
		t.Errorf("zone key = %s, want support_100.00", setup.ZoneKey())
	}
}

func TestDetectReversalAtResistance(t *testing.T) {
	// A shooting star closing inside the resistance band. The previous
	// candle's high sits low enough to clear the tweezer tolerance, and
	// the star's high stays below the band's upper edge so the pierce
	// detector does not claim it.
	candles := append(flatSeries(10),
		candle(100, 100.2, 99.45, 100.15, 1000),
		candle(99.78, 100.45, 99.58, 99.72, 1000),
	)
	candles = series(candles...)
	set := models.ZoneSet{
		Support:    []models.Zone{zoneAt(models.ZoneSupport, 95)},
		Resistance: []models.Zone{zoneAt(models.ZoneResistance, 100)},
	}

	setup := NewDetector(0, 1.5).Detect(candles, set)
	if setup == nil {
		t.Fatal("expected a reversal setup, got nil")
	}
	if setup.Type != models.SetupReversal || setup.Side != models.SideShort {
		t.Fatalf("got %s/%s, want reversal/SHORT", setup.Type, setup.Side)
	}
	if setup.Pattern == nil || setup.Pattern.Name != "Shooting Star" {
		t.Errorf("pattern = %+v, want Shooting Star", setup.Pattern)
	}
	if setup.Zone == nil || setup.Zone.Key != "resistance_100.00" {
		t.Errorf("zone = %+v, want resistance_100.00", setup.Zone)
	}
	if setup.VolumeSpike {
		t.Error("flat volume should not flag a spike")
	}
}

func TestDetectBreaks(t *testing.T) {
	resistance := zoneAt(models.ZoneResistance, 100)
	support := zoneAt(models.ZoneSupport, 100)

	tests := []struct {
		name     string
		last     models.Candle
		set      models.ZoneSet
		wantType models.SetupType
		wantSide models.Side
		wantKey  string
		wantTrue bool
	}{
		{
			name:     "breakout with volume spike is true",
			last:     candle(100.2, 101.0, 100.1, 100.9, 2000),
			set:      models.ZoneSet{Resistance: []models.Zone{resistance}},
			wantType: models.SetupBreakout,
			wantSide: models.SideLong,
			wantKey:  "resistance_100.00",
			wantTrue: true,
		},
		{
			name:     "breakout without volume fades short",
			last:     candle(100.2, 101.0, 100.1, 100.9, 900),
			set:      models.ZoneSet{Resistance: []models.Zone{resistance}},
			wantType: models.SetupFalseBreakout,
			wantSide: models.SideShort,
			wantKey:  "resistance_100.00",
		},
		{
			name:     "breakdown with volume spike is true",
			last:     candle(99.8, 99.9, 99.2, 99.3, 2000),
			set:      models.ZoneSet{Support: []models.Zone{support}},
			wantType: models.SetupBreakdown,
			wantSide: models.SideShort,
			wantKey:  "support_100.00",
			wantTrue: true,
		},
		{
			name:     "breakdown without volume fades long",
			last:     candle(99.8, 99.9, 99.2, 99.3, 900),
			set:      models.ZoneSet{Support: []models.Zone{support}},
			wantType: models.SetupFalseBreakdown,
			wantSide: models.SideLong,
			wantKey:  "support_100.00",
		},
		{
			name: "clearing stacked zones anchors on the outermost",
			last: candle(100.2, 101.8, 100.0, 101.6, 2000),
			set: models.ZoneSet{Resistance: []models.Zone{
				resistance,
				zoneAt(models.ZoneResistance, 101),
			}},
			wantType: models.SetupBreakout,
			wantSide: models.SideLong,
			wantKey:  "resistance_101.00",
			wantTrue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := series(append(flatSeries(10), tt.last)...)
			setup := NewDetector(0, 1.5).Detect(candles, tt.set)
			if setup == nil {
				t.Fatal("expected a setup, got nil")
			}
			if setup.Type != tt.wantType || setup.Side != tt.wantSide {
				t.Fatalf("got %s/%s, want %s/%s", setup.Type, setup.Side, tt.wantType, tt.wantSide)
			}
			if setup.Zone == nil || setup.Zone.Key != tt.wantKey {
				t.Errorf("zone = %+v, want %s", setup.Zone, tt.wantKey)
			}
			if setup.IsTrue != tt.wantTrue {
				t.Errorf("isTrue = %v, want %v", setup.IsTrue, tt.wantTrue)
			}
			if setup.Price != tt.last.Close {
				t.Errorf("price = %.4f, want %.4f", setup.Price, tt.last.Close)
			}
		})
	}
}

func TestDetectPierceRejection(t *testing.T) {
	set := models.ZoneSet{
		Support:    []models.Zone{zoneAt(models.ZoneSupport, 95)},
		Resistance: []models.Zone{zoneAt(models.ZoneResistance, 100)},
	}

	// Wick through the resistance band to 101.2, close back inside at
	// 99.6 on 0.9x volume.
	candles := series(append(flatSeries(10), candle(99.9, 101.2, 99.52, 99.6, 900))...)
	setup := NewDetector(0, 1.5).Detect(candles, set)
	if setup == nil {
		t.Fatal("expected a fade setup, got nil")
	}
	if setup.Type != models.SetupFalseBreakout || setup.Side != models.SideShort {
		t.Fatalf("got %s/%s, want false_breakout/SHORT", setup.Type, setup.Side)
	}
	if setup.Zone == nil || setup.Zone.Key != "resistance_100.00" {
		t.Errorf("zone = %+v, want resistance_100.00", setup.Zone)
	}
	if setup.Name != "rejection above resistance_100.00" {
		t.Errorf("name = %q", setup.Name)
	}
	if setup.Pattern != nil {
		t.Errorf("pierce fades carry no pattern, got %+v", setup.Pattern)
	}
	if setup.IsTrue || setup.VolumeSpike {
		t.Error("fade should flag neither a true break nor a spike")
	}
}

func TestPierceWithVolumeIsNotFaded(t *testing.T) {
	// The same wick on 2x volume: the pierce detector stands down and
	// the candle reads as a shooting-star reversal at resistance.
	set := models.ZoneSet{
		Support:    []models.Zone{zoneAt(models.ZoneSupport, 95)},
		Resistance: []models.Zone{zoneAt(models.ZoneResistance, 100)},
	}
	candles := series(append(flatSeries(10), candle(99.9, 101.2, 99.52, 99.6, 2000))...)

	setup := NewDetector(0, 1.5).Detect(candles, set)
	if setup == nil {
		t.Fatal("expected a setup, got nil")
	}
	if setup.Type != models.SetupReversal || setup.Side != models.SideShort {
		t.Fatalf("got %s/%s, want reversal/SHORT", setup.Type, setup.Side)
	}
	if setup.Pattern == nil || setup.Pattern.Name != "Shooting Star" {
		t.Errorf("pattern = %+v, want Shooting Star", setup.Pattern)
	}
	if !setup.VolumeSpike {
		t.Error("expected the volume spike flag")
	}
}

func TestDetectRetest(t *testing.T) {
	// Close through the resistance upper edge at index 10, hold above,
	// then a hammer dipping back into the band from the breakout side.
	candles := flatSeries(10)
	candles = append(candles, candle(100.2, 101.4, 100.1, 101.2, 1000))
	for i := 0; i < 4; i++ {
		candles = append(candles, candle(101.2, 101.6, 100.9, 101.3, 1000))
	}
	candles = append(candles,
		candle(101.3, 101.5, 100.8, 101.0, 1000),
		candle(101.0, 101.1, 100.2, 101.05, 1000),
	)
	candles = series(candles...)
	set := models.ZoneSet{Resistance: []models.Zone{zoneAt(models.ZoneResistance, 100)}}

	setup := NewDetector(0, 1.5).Detect(candles, set)
	if setup == nil {
		t.Fatal("expected a retest setup, got nil")
	}
	if setup.Type != models.SetupRetest || setup.Side != models.SideLong {
		t.Fatalf("got %s/%s, want retest/LONG", setup.Type, setup.Side)
	}
	if setup.Zone == nil || setup.Zone.Key != "resistance_100.00" {
		t.Errorf("zone = %+v, want resistance_100.00", setup.Zone)
	}
	if setup.Pattern == nil || setup.Pattern.Name != "Hammer" {
		t.Errorf("pattern = %+v, want Hammer", setup.Pattern)
	}
}

func TestRetestWindowExpires(t *testing.T) {
	// Identical shape but the break sits more than twenty candles back,
	// so the zone is no longer considered in play.
	candles := flatSeries(2)
	candles = append(candles, candle(100.2, 101.4, 100.1, 101.2, 1000))
	for i := 0; i < 23; i++ {
		candles = append(candles, candle(101.2, 101.6, 100.9, 101.3, 1000))
	}
	candles = append(candles, candle(101.0, 101.1, 100.2, 101.05, 1000))
	candles = series(candles...)
	set := models.ZoneSet{Resistance: []models.Zone{zoneAt(models.ZoneResistance, 100)}}

	if setup := NewDetector(0, 1.5).Detect(candles, set); setup != nil {
		t.Fatalf("expected nil past the retest window, got %s", setup.Type)
	}
}

func TestZoneCountGate(t *testing.T) {
	candles := series(append(flatSeries(21), candle(100.3, 100.55, 99.6, 100.45, 1850))...)
	set := models.ZoneSet{Support: []models.Zone{zoneAt(models.ZoneSupport, 100)}}

	if setup := NewDetector(2, 1.5).Detect(candles, set); setup != nil {
		t.Fatalf("one zone under a min of two should gate, got %s", setup.Type)
	}
	if setup := NewDetector(1, 1.5).Detect(candles, set); setup == nil {
		t.Fatal("one zone meets a min of one, expected a setup")
	}
	if setup := NewDetector(0, 1.5).Detect(candles, set); setup == nil {
		t.Fatal("zero disables the gate, expected a setup")
	}
}

func TestDetectInsufficientCandles(t *testing.T) {
	set := models.ZoneSet{Support: []models.Zone{zoneAt(models.ZoneSupport, 100)}}
	d := NewDetector(0, 1.5)

	if setup := d.Detect(nil, set); setup != nil {
		t.Fatal("expected nil for no candles")
	}
	if setup := d.Detect(series(flat()), set); setup != nil {
		t.Fatal("expected nil for a single candle")
	}
}

func TestVolumeRatio(t *testing.T) {
	long := flatSeries(25)
	long = append(long, candle(100, 100.5, 99.5, 100.2, 1500))

	tests := []struct {
		name    string
		candles []models.Candle
		want    float64
	}{
		{"single candle defaults to one", flatSeries(1), 1},
		{"two candles", []models.Candle{
			candle(100, 101, 99, 100.5, 500),
			candle(100, 101, 99, 100.5, 1000),
		}, 2},
		{"zero volumes default to one", []models.Candle{
			candle(100, 101, 99, 100.5, 0),
			candle(100, 101, 99, 100.5, 0),
			candle(100, 101, 99, 100.5, 0),
		}, 1},
		{"average over at most twenty", long, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolumeRatio(series(tt.candles...)); got != tt.want {
				t.Fatalf("ratio = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}
