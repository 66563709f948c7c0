package models

// Structure is the per-timeframe trend label derived from recent pivots.
type Structure string

const (
	StructureUp      Structure = "up"
	StructureDown    Structure = "down"
	StructureNeutral Structure = "neutral"
)

// HTFBias is the weighted aggregate structure of the higher timeframes.
type HTFBias struct {
	Bias       Direction               `json:"bias"`
	Alignment  bool                    `json:"alignment"`
	Structures map[Timeframe]Structure `json:"structures"`
	Score      float64                 `json:"score"`
}

// HTFAlignment is the result of checking a trade side against the HTF bias.
type HTFAlignment struct {
	Aligned bool    `json:"aligned"`
	Score   float64 `json:"score"`
}

// StructureEventType distinguishes continuation breaks from reversals.
type StructureEventType string

const (
	EventBOS   StructureEventType = "BOS"
	EventCHoCH StructureEventType = "CHOCH"
)

// StructureEvent represents a break of structure or change of character
// against the most recent swing extremes.
type StructureEvent struct {
	Type      StructureEventType `json:"type"`
	Direction Direction          `json:"direction"`
	Price     float64            `json:"price"`
}

// RegimeType is a coarse market state.
type RegimeType string

const (
	RegimeTrendUp   RegimeType = "trend_up"
	RegimeTrendDown RegimeType = "trend_down"
	RegimeRange     RegimeType = "range"
	RegimeExpansion RegimeType = "expansion"
)

// Regime describes the detected market regime with its inputs.
type Regime struct {
	Type       RegimeType `json:"type"`
	Confidence float64    `json:"confidence"`
	ATRRatio   float64    `json:"atr_ratio"`
	Slope      float64    `json:"slope"`
}

// SweepSource tells which reference a liquidity sweep penetrated.
type SweepSource string

const (
	SweepSwing SweepSource = "swing"
	SweepZone  SweepSource = "zone"
)

// Sweep represents a liquidity grab: a wick through a reference level
// with a close back inside.
type Sweep struct {
	Type      Direction   `json:"type"`
	Source    SweepSource `json:"source"`
	Reference float64     `json:"reference"`
	Strength  float64     `json:"strength"`
}

// DivergenceType labels RSI divergence variants.
type DivergenceType string

const (
	DivergenceRegularBullish DivergenceType = "regular_bullish"
	DivergenceRegularBearish DivergenceType = "regular_bearish"
	DivergenceHiddenBullish  DivergenceType = "hidden_bullish"
	DivergenceHiddenBearish  DivergenceType = "hidden_bearish"
)

// Divergence represents a price/RSI divergence at recent pivots.
type Divergence struct {
	Type      DivergenceType `json:"type"`
	Direction Direction      `json:"direction"`
}
