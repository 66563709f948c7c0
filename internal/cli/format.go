package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bybit-sentinel/internal/models"
)

// FormatPrice formats a price with decimals scaled to its magnitude,
// so BTCUSDT and low-priced perpetuals both stay readable.
func FormatPrice(price float64) string {
	abs := math.Abs(price)
	switch {
	case abs >= 1000:
		return fmt.Sprintf("%.2f", price)
	case abs >= 1:
		return fmt.Sprintf("%.4f", price)
	case abs == 0:
		return "0"
	}
	return fmt.Sprintf("%.6f", price)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatVolume formats contract volume in compact form.
func FormatVolume(volume float64) string {
	abs := math.Abs(volume)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", volume/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", volume/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", volume/1e3)
	}
	return fmt.Sprintf("%.0f", volume)
}

// FormatRiskReward formats a risk-reward ratio.
func FormatRiskReward(rr float64) string {
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatRatio formats a volume or strength ratio.
func FormatRatio(r float64) string {
	return fmt.Sprintf("%.2fx", r)
}

// FormatTime formats a clock time in UTC, the exchange's reference.
func FormatTime(t time.Time) string {
	return t.UTC().Format("15:04:05")
}

// FormatDate formats a date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("02-Jan-2006")
}

// FormatDateTime formats a datetime in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02-Jan-2006 15:04")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatChange formats a close-to-close move.
func FormatChange(change, changePct float64) string {
	sign := ""
	if change > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%s (%s%.2f%%)", sign, FormatPrice(change), sign, changePct)
}

// FormatOHLC formats one candle's prices.
func FormatOHLC(open, high, low, close float64) string {
	return fmt.Sprintf("O: %s  H: %s  L: %s  C: %s",
		FormatPrice(open), FormatPrice(high), FormatPrice(low), FormatPrice(close))
}

// FormatZoneBand formats a zone as center with its band.
func FormatZoneBand(center, lower, upper float64) string {
	return fmt.Sprintf("%s [%s .. %s]", FormatPrice(center), FormatPrice(lower), FormatPrice(upper))
}

// joinTimeframes renders a timeframe list for banners and summaries.
func joinTimeframes(tfs []models.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = tf.String()
	}
	return strings.Join(parts, ", ")
}

// TruncateString shortens a string to maxLen, ending with an ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

