package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bybit-sentinel/internal/analysis/structure"
	"bybit-sentinel/internal/logging"
	"bybit-sentinel/internal/metrics"
	"bybit-sentinel/internal/models"
)

// Skip reasons recorded when an evaluation ends without a signal.
const (
	SkipInsufficientData = "insufficient_data"
	SkipNoSetup          = "no_setup"
	SkipNoZones          = "no_zones"
	SkipHTFNotAligned    = "htf_not_aligned"
	SkipLowVolume        = "low_volume"
	SkipScoreTooLow      = "score_too_low"
	SkipInvalidLevels    = "invalid_levels"
	SkipRRTooLow         = "rr_too_low"
	SkipChaseNo          = "chase_no"
	SkipCooldownActive   = "cooldown_active"
)

// SkipReasons lists every reason in gate order. Reporting code uses it
// to print stable summaries.
var SkipReasons = []string{
	SkipInsufficientData,
	SkipNoSetup,
	SkipNoZones,
	SkipHTFNotAligned,
	SkipLowVolume,
	SkipScoreTooLow,
	SkipInvalidLevels,
	SkipRRTooLow,
	SkipChaseNo,
	SkipCooldownActive,
}

// pipelineOptions selects the gate set for one evaluation. The close
// and forming paths run the same sequence with different thresholds
// and with the alignment and volume gates switched.
type pipelineOptions struct {
	stage         models.SignalStage
	threshold     float64
	gateAlignment bool
	gateVolume    bool
}

// EvaluateClose runs the full gate sequence over the closed candles of
// an entry timeframe. It either hands a signal to the sink, persisting
// it and arming the cooldown on delivery success, or records exactly
// one skip reason.
func (e *Engine) EvaluateClose(ctx context.Context, symbol string, tf models.Timeframe) {
	if !e.cfg.StageEnabled("entry") {
		return
	}
	start := time.Now()
	defer func() {
		metrics.EvaluationSeconds.Observe(time.Since(start).Seconds())
	}()
	metrics.IncEvaluation(symbol, tf.String(), "close")
	log := logging.WithTimeframe(logging.WithSymbol(e.logger, symbol), tf)

	candles := e.market.Closed(symbol, tf)
	sig := e.resolve(log, symbol, tf, candles, pipelineOptions{
		stage:         models.StageEntry,
		threshold:     e.cfg.EntryThreshold(),
		gateAlignment: true,
		gateVolume:    true,
	})
	if sig == nil {
		return
	}

	zoneKey := sig.Setup.ZoneKey()
	onCooldown, err := e.cooldowns.IsOnCooldown(ctx, symbol, tf, sig.Side, zoneKey)
	if err != nil {
		log.Warn().Err(err).Msg("cooldown check failed, proceeding")
	}
	if onCooldown {
		e.skip(log, symbol, tf, SkipCooldownActive, sig.CooldownKey())
		return
	}

	if err := e.sink.SendSignal(ctx, *sig); err != nil {
		metrics.IncNotifyFailure()
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("signal delivery failed")
		return
	}

	logging.LogSignal(log, *sig)
	metrics.IncSignal(string(sig.Stage), string(sig.Side))

	if err := e.signals.SaveSignal(ctx, *sig); err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("failed to persist signal")
	}
	if minutes := e.cfg.Signals.CooldownMinutes; minutes > 0 {
		if err := e.cooldowns.AddCooldown(ctx, symbol, tf, sig.Side, zoneKey, minutes); err != nil {
			log.Error().Err(err).Str("signal_id", sig.ID).Msg("failed to arm cooldown")
		}
	}
}

// EvaluateForming runs the throttled intrabar pipeline over closed
// candles plus the forming overlay. SETUP alerts use the setup
// thresholds, skip the alignment and volume gates, never write
// cooldowns and fire at most once per setup instance.
func (e *Engine) EvaluateForming(ctx context.Context, symbol string, tf models.Timeframe) {
	if !e.cfg.StageEnabled("setup") {
		return
	}

	throttleKey := symbol + "|" + tf.String()
	e.mu.Lock()
	now := e.clock()
	if last, ok := e.lastIntrabar[throttleKey]; ok && now.Sub(last) < intrabarMinInterval {
		e.mu.Unlock()
		return
	}
	e.lastIntrabar[throttleKey] = now
	e.mu.Unlock()

	metrics.IncEvaluation(symbol, tf.String(), "forming")
	log := logging.WithTimeframe(logging.WithSymbol(e.logger, symbol), tf)

	candles := e.market.ClosedWithForming(symbol, tf)
	sig := e.resolve(log, symbol, tf, candles, pipelineOptions{
		stage:         models.StageSetup,
		threshold:     e.cfg.SetupThreshold(),
		gateAlignment: false,
		gateVolume:    false,
	})
	if sig == nil {
		return
	}

	dedupKey := sig.CooldownKey()
	e.mu.Lock()
	expiry, seen := e.setupSeen[dedupKey]
	alerted := seen && e.clock().Before(expiry)
	e.mu.Unlock()
	if alerted {
		e.skip(log, symbol, tf, SkipCooldownActive, "setup already alerted: "+dedupKey)
		return
	}

	if err := e.sink.SendSignal(ctx, *sig); err != nil {
		metrics.IncNotifyFailure()
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("setup alert delivery failed")
		return
	}

	logging.LogSignal(log, *sig)
	metrics.IncSignal(string(sig.Stage), string(sig.Side))

	if minutes := e.cfg.Signals.CooldownMinutes; minutes > 0 {
		e.mu.Lock()
		e.setupSeen[dedupKey] = e.clock().Add(time.Duration(minutes) * time.Minute)
		e.mu.Unlock()
	}

	if err := e.signals.SaveSignal(ctx, *sig); err != nil {
		log.Error().Err(err).Str("signal_id", sig.ID).Msg("failed to persist setup alert")
	}
}

// resolve walks the gate sequence and returns the fully-resolved
// signal, or nil after recording the skip reason. The cooldown gate is
// the caller's: close evaluations consult the cooldown store, forming
// evaluations the dedup map.
func (e *Engine) resolve(log zerolog.Logger, symbol string, tf models.Timeframe, candles []models.Candle, opts pipelineOptions) *models.Signal {
	if len(candles) < minClosedCandles {
		e.skip(log, symbol, tf, SkipInsufficientData, fmt.Sprintf("%d candles, need %d", len(candles), minClosedCandles))
		return nil
	}

	snap := e.analyzer.Analyze(candles)
	if snap.Setup == nil {
		if minZones := e.cfg.Signals.MinZonesRequired; minZones > 0 && snap.Zones.Count() < minZones {
			e.skip(log, symbol, tf, SkipNoZones, fmt.Sprintf("%d zones, need %d", snap.Zones.Count(), minZones))
		} else {
			e.skip(log, symbol, tf, SkipNoSetup, "no actionable setup")
		}
		return nil
	}
	setup := snap.Setup

	bias := e.htfBias(symbol)
	alignment := structure.CheckAlignment(setup.Side, bias)
	if opts.gateAlignment && !alignment.Aligned {
		e.skip(log, symbol, tf, SkipHTFNotAligned, fmt.Sprintf("%s against %s bias (score %.2f)", setup.Side, bias.Bias, bias.Score))
		return nil
	}

	if opts.gateVolume && e.cfg.Signals.RequireVolumeConfirmation && snap.VolumeRatio < e.cfg.Signals.VolumeSpikeThreshold {
		e.skip(log, symbol, tf, SkipLowVolume, fmt.Sprintf("volume ratio %.2f below %.2f", snap.VolumeRatio, e.cfg.Signals.VolumeSpikeThreshold))
		return nil
	}

	breakdown := e.analyzer.Score(setup, alignment, snap.Strength, snap.Divergence)
	if opts.threshold > 0 && breakdown.Total < opts.threshold {
		e.skip(log, symbol, tf, SkipScoreTooLow, fmt.Sprintf("score %.1f below %.1f", breakdown.Total, opts.threshold))
		return nil
	}

	lv, err := e.analyzer.Levels(setup)
	if err != nil {
		e.skip(log, symbol, tf, SkipInvalidLevels, err.Error())
		return nil
	}
	if err := lv.Validate(setup.Side); err != nil {
		e.skip(log, symbol, tf, SkipInvalidLevels, err.Error())
		return nil
	}
	if minRR := e.cfg.Signals.MinRR; minRR > 0 && lv.RiskReward1 < minRR {
		e.skip(log, symbol, tf, SkipRRTooLow, fmt.Sprintf("rr %.2f below %.2f", lv.RiskReward1, minRR))
		return nil
	}

	chase := e.analyzer.ChaseRisk(candles, setup, snap.StructureEvent)
	if chase.Decision == models.ChaseNo {
		e.skip(log, symbol, tf, SkipChaseNo, fmt.Sprintf("%s (chase score %.0f)", chase.Reason, chase.Score))
		return nil
	}

	return &models.Signal{
		ID:             uuid.New().String(),
		Stage:          opts.stage,
		Symbol:         symbol,
		Timeframe:      tf,
		Side:           setup.Side,
		Score:          breakdown.Total,
		Breakdown:      breakdown,
		Setup:          *setup,
		HTFBias:        bias,
		Regime:         snap.Regime,
		StructureEvent: snap.StructureEvent,
		Sweep:          snap.Sweep,
		Divergence:     snap.Divergence,
		VolumeRatio:    snap.VolumeRatio,
		Levels:         lv,
		ChaseEval:      &chase,
		Timestamp:      e.now(),
	}
}

func (e *Engine) skip(log zerolog.Logger, symbol string, tf models.Timeframe, reason, details string) {
	logging.LogSkip(log, symbol, tf, reason, details)
	metrics.IncSkip(reason)

	e.mu.Lock()
	observer := e.onSkip
	e.mu.Unlock()
	if observer != nil {
		observer(reason)
	}
}
