package models

// Pattern represents a detected candlestick pattern.
type Pattern struct {
	Name     string    `json:"name"`
	Type     Direction `json:"type"`
	Strength float64   `json:"strength"`
}

// RejectionType labels which side of a candle was rejected.
type RejectionType string

const (
	RejectionUpside   RejectionType = "upside"
	RejectionDownside RejectionType = "downside"
)

// Rejection describes a wick-driven rejection within a single candle.
type Rejection struct {
	Type     RejectionType `json:"type"`
	Strength float64       `json:"strength"`
}

// CandleStrength summarises the anatomy of a single candle.
// A zero-range candle maps to Direction=Neutral with no rejection.
type CandleStrength struct {
	BodyPercent      float64    `json:"body_percent"`
	CloseLocation    float64    `json:"close_location"`
	UpperWickPercent float64    `json:"upper_wick_percent"`
	LowerWickPercent float64    `json:"lower_wick_percent"`
	Rejection        *Rejection `json:"rejection,omitempty"`
	Direction        Direction  `json:"direction"`
}
