package models

import (
	"fmt"
	"math"
)

// Levels holds the zone-anchored stop loss and take profits for a setup.
// TakeProfit2 and RiskReward2 are zero when only one target exists.
type Levels struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2,omitempty"`
	RiskReward1 float64 `json:"risk_reward_1"`
	RiskReward2 float64 `json:"risk_reward_2,omitempty"`
	SLZone      *Zone   `json:"sl_zone,omitempty"`
	TPZones     []Zone  `json:"tp_zones,omitempty"`
}

// Validate checks finiteness, directional ordering, and a positive risk
// unit. Side determines the expected ordering.
func (l Levels) Validate(side Side) error {
	values := []float64{l.Entry, l.StopLoss, l.TakeProfit1, l.RiskReward1}
	if l.TakeProfit2 != 0 {
		values = append(values, l.TakeProfit2, l.RiskReward2)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("level value not finite: %+v", l)
		}
	}
	risk := math.Abs(l.Entry - l.StopLoss)
	if risk == 0 {
		return fmt.Errorf("zero risk: entry %.4f equals stop loss", l.Entry)
	}
	switch side {
	case SideLong:
		if !(l.StopLoss < l.Entry && l.Entry < l.TakeProfit1) {
			return fmt.Errorf("long levels out of order: SL=%.4f entry=%.4f TP1=%.4f", l.StopLoss, l.Entry, l.TakeProfit1)
		}
		if l.TakeProfit2 != 0 && l.TakeProfit2 < l.TakeProfit1 {
			return fmt.Errorf("long TP2 %.4f below TP1 %.4f", l.TakeProfit2, l.TakeProfit1)
		}
	case SideShort:
		if !(l.StopLoss > l.Entry && l.Entry > l.TakeProfit1) {
			return fmt.Errorf("short levels out of order: SL=%.4f entry=%.4f TP1=%.4f", l.StopLoss, l.Entry, l.TakeProfit1)
		}
		if l.TakeProfit2 != 0 && l.TakeProfit2 > l.TakeProfit1 {
			return fmt.Errorf("short TP2 %.4f above TP1 %.4f", l.TakeProfit2, l.TakeProfit1)
		}
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}
