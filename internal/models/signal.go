package models

import (
	"fmt"
	"time"
)

// ChaseDecision is the verdict of the anti-chase evaluation.
type ChaseDecision string

const (
	ChaseOK       ChaseDecision = "CHASE_OK"
	ChaseNo       ChaseDecision = "CHASE_NO"
	ReversalWatch ChaseDecision = "REVERSAL_WATCH"
)

// ChaseMetrics holds the raw measurements behind a chase decision.
type ChaseMetrics struct {
	ATRMove      float64 `json:"atr_move"`
	PctMove      float64 `json:"pct_move"`
	BodyRatio    float64 `json:"body_ratio"`
	VolumeRatio  float64 `json:"volume_ratio"`
	VolumeClimax bool    `json:"volume_climax"`
	Consecutive  int     `json:"consecutive"`
	Acceleration bool    `json:"acceleration"`
	Slowdown     bool    `json:"slowdown"`
}

// ChaseEval is the full anti-chase result. Higher score means riskier entry.
type ChaseEval struct {
	Decision ChaseDecision `json:"decision"`
	Reason   string        `json:"reason"`
	Score    float64       `json:"score"`
	Metrics  ChaseMetrics  `json:"metrics"`
}

// Caution reports whether the entry passed but with an elevated chase score.
func (c ChaseEval) Caution() bool {
	return c.Decision == ChaseOK && c.Score >= 25
}

// ScoreBreakdown itemises the signal score components.
type ScoreBreakdown struct {
	HTF        float64 `json:"htf"`
	Setup      float64 `json:"setup"`
	Candle     float64 `json:"candle"`
	Volume     float64 `json:"volume"`
	Divergence float64 `json:"divergence"`
	Total      float64 `json:"total"`
}

// Signal is the fully-resolved payload handed to the notification sink
// and the signal store.
type Signal struct {
	ID             string          `json:"id"`
	Stage          SignalStage     `json:"stage"`
	Symbol         string          `json:"symbol"`
	Timeframe      Timeframe       `json:"timeframe"`
	Side           Side            `json:"side"`
	Score          float64         `json:"score"`
	Breakdown      ScoreBreakdown  `json:"breakdown"`
	Setup          Setup           `json:"setup"`
	HTFBias        HTFBias         `json:"htf_bias"`
	Regime         *Regime         `json:"regime,omitempty"`
	StructureEvent *StructureEvent `json:"structure_event,omitempty"`
	Sweep          *Sweep          `json:"sweep,omitempty"`
	Divergence     *Divergence     `json:"divergence,omitempty"`
	VolumeRatio    float64         `json:"volume_ratio"`
	Levels         Levels          `json:"levels"`
	ChaseEval      *ChaseEval      `json:"chase_eval,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// CooldownKey returns the identity under which this signal's setup
// instance is considered already signalled.
func (s Signal) CooldownKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Symbol, s.Timeframe, s.Side, s.Setup.ZoneKey())
}
