package models

import "fmt"

// SetupType represents the kind of price-action setup detected at a zone.
type SetupType string

const (
	SetupReversal       SetupType = "reversal"
	SetupBreakout       SetupType = "breakout"
	SetupBreakdown      SetupType = "breakdown"
	SetupRetest         SetupType = "retest"
	SetupFalseBreakout  SetupType = "false_breakout"
	SetupFalseBreakdown SetupType = "false_breakdown"
)

// Setup represents a directional price-action configuration at a zone.
// Zones carries the full zone set so level calculation downstream does
// not have to rebuild it.
type Setup struct {
	Type        SetupType `json:"type"`
	Side        Side      `json:"side"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Zone        *Zone     `json:"zone,omitempty"`
	Zones       ZoneSet   `json:"zones"`
	Pattern     *Pattern  `json:"pattern,omitempty"`
	IsTrue      bool      `json:"is_true,omitempty"`
	VolumeSpike bool      `json:"volume_spike,omitempty"`
	VolumeRatio float64   `json:"volume_ratio,omitempty"`
}

// ZoneKey returns the identity of the setup's anchor zone, used for
// cooldown and dedup keys. Falls back to the setup price when the setup
// was detected without a zone.
func (s Setup) ZoneKey() string {
	if s.Zone != nil {
		return s.Zone.Key
	}
	return fmt.Sprintf("price_%.2f", s.Price)
}
