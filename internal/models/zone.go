package models

import (
	"fmt"
	"time"
)

// ZoneType represents the type of a price zone.
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
)

// Zone represents a support or resistance band anchored on a pivot.
type Zone struct {
	Type      ZoneType  `json:"type"`
	Center    float64   `json:"center"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
	Timestamp time.Time `json:"timestamp"`
	Touches   int       `json:"touches"`
	Key       string    `json:"key"`
}

// NewZone builds a zone around a pivot price with the given tolerance fraction.
func NewZone(zoneType ZoneType, center, tolerance float64, ts time.Time) Zone {
	z := Zone{
		Type:      zoneType,
		Center:    center,
		Lower:     center * (1 - tolerance),
		Upper:     center * (1 + tolerance),
		Timestamp: ts,
		Touches:   1,
	}
	z.Key = ZoneKey(zoneType, center)
	return z
}

// ZoneKey builds the stable identity of a zone from its type and center.
func ZoneKey(zoneType ZoneType, center float64) string {
	return fmt.Sprintf("%s_%.2f", zoneType, center)
}

// Contains reports whether price falls inside the zone band.
func (z Zone) Contains(price float64) bool {
	return price >= z.Lower && price <= z.Upper
}

// ZoneSet holds the support and resistance zones built from one candle window.
type ZoneSet struct {
	Support    []Zone `json:"support"`
	Resistance []Zone `json:"resistance"`
}

// Count returns the total number of zones in the set.
func (zs ZoneSet) Count() int {
	return len(zs.Support) + len(zs.Resistance)
}

// All returns support and resistance zones as one slice.
func (zs ZoneSet) All() []Zone {
	all := make([]Zone, 0, zs.Count())
	all = append(all, zs.Support...)
	all = append(all, zs.Resistance...)
	return all
}
