package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bybit-sentinel/internal/models"
)

// Property: for any valid signal, saving and then listing by symbol
// reproduces the numeric fields exactly and keeps every value finite.
func TestProperty_SignalRoundTripConsistency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "property.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	sides := []models.Side{models.SideLong, models.SideShort}
	timeframes := []models.Timeframe{models.TF1h, models.TF4h, models.TF1d}

	run := 0

	properties.Property("save then list reproduces the signal", prop.ForAll(
		func(sideIdx, tfIdx int, score, entry, riskPct float64) bool {
			ctx := context.Background()
			run++
			// Unique symbol per iteration keeps runs independent.
			symbol := fmt.Sprintf("PROP%dUSDT", run)

			side := sides[sideIdx]
			risk := entry * riskPct
			sl, tp1 := entry-risk, entry+1.8*risk
			if side == models.SideShort {
				sl, tp1 = entry+risk, entry-1.8*risk
			}

			sig := testSignal(fmt.Sprintf("id-%d", run), symbol, timeframes[tfIdx], side, score,
				time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(run)*time.Minute))
			sig.Levels = models.Levels{
				Entry:       entry,
				StopLoss:    sl,
				TakeProfit1: tp1,
				RiskReward1: 1.8,
			}

			if err := store.SaveSignal(ctx, sig); err != nil {
				t.Logf("SaveSignal: %v", err)
				return false
			}

			got, err := store.ListSignals(ctx, SignalFilter{Symbol: symbol})
			if err != nil {
				t.Logf("ListSignals: %v", err)
				return false
			}
			if len(got) != 1 {
				t.Logf("listed %d signals, want 1", len(got))
				return false
			}

			out := got[0]
			if out.ID != sig.ID || out.Side != side || out.Timeframe != timeframes[tfIdx] {
				return false
			}
			if out.Score != score || !reflect.DeepEqual(out.Levels, sig.Levels) {
				return false
			}
			for _, v := range []float64{out.Score, out.Levels.Entry, out.Levels.StopLoss, out.Levels.TakeProfit1, out.Levels.RiskReward1} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(sides)-1),
		gen.IntRange(0, len(timeframes)-1),
		gen.Float64Range(0, 110),
		gen.Float64Range(100, 100000),
		gen.Float64Range(0.001, 0.05),
	))

	properties.TestingRun(t)
}

// Property: arming a cooldown makes exactly that key hot; any other
// key stays cold.
func TestProperty_CooldownKeyIsolation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cooldowns.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0

	properties := gopter.NewProperties(parameters)

	run := 0

	properties.Property("only the armed key is on cooldown", prop.ForAll(
		func(center float64, minutes int) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("CD%dUSDT", run)
			zoneKey := models.ZoneKey(models.ZoneSupport, center)

			if err := store.AddCooldown(ctx, symbol, models.TF1h, models.SideLong, zoneKey, minutes); err != nil {
				t.Logf("AddCooldown: %v", err)
				return false
			}

			on, err := store.IsOnCooldown(ctx, symbol, models.TF1h, models.SideLong, zoneKey)
			if err != nil || !on {
				return false
			}

			other, err := store.IsOnCooldown(ctx, symbol, models.TF1h, models.SideShort, zoneKey)
			if err != nil || other {
				return false
			}
			return true
		},
		gen.Float64Range(1, 100000),
		gen.IntRange(1, 1440),
	))

	properties.TestingRun(t)
}
