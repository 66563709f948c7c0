// Package notify delivers fully-resolved signals to the configured
// sinks. Formatting lives here, not in the engine: each channel
// renders the signal its own way.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"bybit-sentinel/internal/config"
	"bybit-sentinel/internal/models"
)

// Notifier is the engine-facing sink. A returned error means the
// signal was not delivered; the engine then neither persists it nor
// arms the cooldown, so a later candle can retry the same setup.
type Notifier interface {
	SendSignal(ctx context.Context, sig models.Signal) error
}

// Channel is one concrete delivery target inside a MultiNotifier.
type Channel interface {
	Name() string
	SendSignal(ctx context.Context, sig models.Signal) error
	IsEnabled() bool
}

// MultiNotifier fans a signal out to every enabled channel and
// aggregates their failures.
type MultiNotifier struct {
	channels []Channel
	mu       sync.RWMutex
}

// NewMultiNotifier builds the channel set from configuration. Returns
// a notifier with no channels when nothing is enabled; Send on it is a
// successful no-op.
func NewMultiNotifier(cfg config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{}
	if !cfg.Enabled {
		return mn
	}

	if cfg.Terminal {
		mn.AddChannel(NewTerminalNotifier())
	}
	if cfg.Webhook.Enabled {
		mn.AddChannel(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.AddChannel(NewTelegramNotifier(cfg.Telegram))
	}
	return mn
}

// AddChannel adds a delivery target.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// SendSignal delivers to all enabled channels. Any channel failure
// makes the whole send fail so the engine can retry later.
func (mn *MultiNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.SendSignal(ctx, sig); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NoOpNotifier swallows signals. Used when notifications are disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// SendSignal does nothing.
func (n *NoOpNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	return nil
}

// LogNotifier writes signals to the structured log only. This is the
// dry-run sink: delivery always succeeds, nothing leaves the process.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendSignal logs the signal at info level.
func (l *LogNotifier) SendSignal(ctx context.Context, sig models.Signal) error {
	l.logger.Info().
		Str("stage", string(sig.Stage)).
		Str("symbol", sig.Symbol).
		Str("timeframe", sig.Timeframe.String()).
		Str("side", string(sig.Side)).
		Float64("score", sig.Score).
		Str("setup", sig.Setup.Name).
		Float64("entry", sig.Levels.Entry).
		Float64("stop_loss", sig.Levels.StopLoss).
		Float64("take_profit_1", sig.Levels.TakeProfit1).
		Float64("risk_reward", sig.Levels.RiskReward1).
		Msg("dry run signal")
	return nil
}

// signalHeadline builds the one-line identity shared by the text sinks.
func signalHeadline(sig models.Signal) string {
	return fmt.Sprintf("%s %s %s %s", sig.Stage, sig.Side, sig.Symbol, sig.Timeframe)
}

// signalBody renders the plain-text block shared by telegram and the
// terminal sink.
func signalBody(sig models.Signal) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Score: %.1f (HTF %.0f | Setup %.0f | Candle %.0f | Volume %.0f",
		sig.Score, sig.Breakdown.HTF, sig.Breakdown.Setup, sig.Breakdown.Candle, sig.Breakdown.Volume))
	if sig.Breakdown.Divergence > 0 {
		sb.WriteString(fmt.Sprintf(" | Div +%.0f", sig.Breakdown.Divergence))
	}
	sb.WriteString(")\n")

	sb.WriteString(fmt.Sprintf("Setup: %s\n", sig.Setup.Name))
	sb.WriteString(fmt.Sprintf("Entry: %.4f\nStop: %.4f\nTP1: %.4f", sig.Levels.Entry, sig.Levels.StopLoss, sig.Levels.TakeProfit1))
	if sig.Levels.TakeProfit2 != 0 {
		sb.WriteString(fmt.Sprintf("\nTP2: %.4f", sig.Levels.TakeProfit2))
	}
	sb.WriteString(fmt.Sprintf("\nR:R: %.2f", sig.Levels.RiskReward1))

	if sig.HTFBias.Bias != models.Neutral {
		sb.WriteString(fmt.Sprintf("\nHTF bias: %s", sig.HTFBias.Bias))
	}
	if sig.Regime != nil {
		sb.WriteString(fmt.Sprintf("\nRegime: %s", sig.Regime.Type))
	}
	if sig.StructureEvent != nil {
		sb.WriteString(fmt.Sprintf("\nStructure: %s %s at %.4f", sig.StructureEvent.Type, sig.StructureEvent.Direction, sig.StructureEvent.Price))
	}
	if sig.Sweep != nil {
		sb.WriteString(fmt.Sprintf("\nLiquidity sweep: %s through %.4f", sig.Sweep.Type, sig.Sweep.Reference))
	}
	if sig.Divergence != nil {
		sb.WriteString(fmt.Sprintf("\nRSI divergence: %s", sig.Divergence.Type))
	}
	if ce := sig.ChaseEval; ce != nil {
		switch {
		case ce.Decision == models.ReversalWatch:
			sb.WriteString(fmt.Sprintf("\nCaution: REVERSAL WATCH (%s)", ce.Reason))
		case ce.Caution():
			sb.WriteString(fmt.Sprintf("\nCaution: extended entry, chase score %.0f", ce.Score))
		}
	}

	return sb.String()
}

func sideEmoji(side models.Side) string {
	if side == models.SideLong {
		return "🟢"
	}
	return "🔴"
}
