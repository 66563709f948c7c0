// Package levels derives zone-anchored stop loss and take profit
// targets for a setup.
package levels

import (
	"bybit-sentinel/internal/analysis/zones"
	"bybit-sentinel/internal/errors"
	"bybit-sentinel/internal/models"
)

const (
	maxTargetZones = 3
	fallbackSLPct  = 0.01
	extensionRR1   = 1.5
	extensionRR2   = 3.0
)

// Calculator anchors levels on the setup's zone set.
type Calculator struct {
	slBuffer float64
}

// NewCalculator builds a Calculator. slBuffer is the fraction applied
// beyond the stop zone's far edge to avoid stop hunts at the level.
func NewCalculator(slBuffer float64) *Calculator {
	return &Calculator{slBuffer: slBuffer}
}

// Calculate derives and validates levels for the setup. Entry is the
// setup price. The stop hides behind the nearest zone on the loss side,
// falling back to the setup's own zone and last of all to a flat
// percent. Targets ladder across the next opposing zones, extended with
// risk multiples when fewer than two exist.
func (c *Calculator) Calculate(setup *models.Setup) (models.Levels, error) {
	if setup == nil || setup.Price <= 0 {
		return models.Levels{}, errors.Wrap(errors.ErrInsufficientData, "levels: no setup to anchor on")
	}

	entry := setup.Price
	l := models.Levels{Entry: entry}

	switch setup.Side {
	case models.SideLong:
		l.StopLoss, l.SLZone = c.stopLong(entry, setup)
		l.TPZones = zones.FindNextOpposingZones(entry, setup.Zones, setup.Side, maxTargetZones)
		risk := entry - l.StopLoss
		l.TakeProfit1, l.TakeProfit2 = targetsLong(entry, risk, l.TPZones)
		if risk > 0 {
			l.RiskReward1 = (l.TakeProfit1 - entry) / risk
			if l.TakeProfit2 != 0 {
				l.RiskReward2 = (l.TakeProfit2 - entry) / risk
			}
		}
	case models.SideShort:
		l.StopLoss, l.SLZone = c.stopShort(entry, setup)
		l.TPZones = zones.FindNextOpposingZones(entry, setup.Zones, setup.Side, maxTargetZones)
		risk := l.StopLoss - entry
		l.TakeProfit1, l.TakeProfit2 = targetsShort(entry, risk, l.TPZones)
		if risk > 0 {
			l.RiskReward1 = (entry - l.TakeProfit1) / risk
			if l.TakeProfit2 != 0 {
				l.RiskReward2 = (entry - l.TakeProfit2) / risk
			}
		}
	default:
		return models.Levels{}, errors.Wrapf(errors.ErrConfigInvalid, "levels: unknown side %q", setup.Side)
	}

	if err := l.Validate(setup.Side); err != nil {
		return models.Levels{}, err
	}
	return l, nil
}

func (c *Calculator) stopLong(entry float64, setup *models.Setup) (float64, *models.Zone) {
	if z := zones.FindStopLossZone(entry, setup.Zones, models.SideLong); z != nil {
		return z.Lower * (1 - c.slBuffer), z
	}
	if z := setup.Zone; z != nil {
		return z.Lower * (1 - c.slBuffer), z
	}
	return entry * (1 - fallbackSLPct), nil
}

func (c *Calculator) stopShort(entry float64, setup *models.Setup) (float64, *models.Zone) {
	if z := zones.FindStopLossZone(entry, setup.Zones, models.SideShort); z != nil {
		return z.Upper * (1 + c.slBuffer), z
	}
	if z := setup.Zone; z != nil {
		return z.Upper * (1 + c.slBuffer), z
	}
	return entry * (1 + fallbackSLPct), nil
}

func targetsLong(entry, risk float64, tpZones []models.Zone) (tp1, tp2 float64) {
	switch len(tpZones) {
	case 0:
		return entry + extensionRR1*risk, entry + extensionRR2*risk
	case 1:
		tp1 = tpZones[0].Center
		if tp2 = entry + extensionRR2*risk; tp2 <= tp1 {
			tp2 = 0
		}
		return tp1, tp2
	default:
		return tpZones[0].Center, tpZones[1].Center
	}
}

func targetsShort(entry, risk float64, tpZones []models.Zone) (tp1, tp2 float64) {
	switch len(tpZones) {
	case 0:
		return entry - extensionRR1*risk, entry - extensionRR2*risk
	case 1:
		tp1 = tpZones[0].Center
		if tp2 = entry - extensionRR2*risk; tp2 >= tp1 {
			tp2 = 0
		}
		return tp1, tp2
	default:
		return tpZones[0].Center, tpZones[1].Center
	}
}
