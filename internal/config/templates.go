package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Bybit Sentinel Configuration
# Every option here can also be set through the environment; see README.

[market]
# Instruments to watch (Bybit linear perpetual symbols)
symbols = ["BTCUSDT", "ETHUSDT"]
# Timeframes to ingest
timeframes = ["1d", "4h", "1h"]
# Timeframes that produce ENTRY signals
entry_timeframes = ["1h"]
# Timeframes aggregated into the HTF bias
htf_timeframes = ["1d", "4h"]

[signals]
# Preset bundle: "pro" or "aggressive"
mode = "pro"
# Enabled stages: "setup" (intrabar early warning), "entry" (on close)
stages_enabled = ["entry"]
# Score gates; 0 disables. entry_score_threshold falls back to min_score.
#min_score = 70.0
#setup_score_threshold = 50.0
#entry_score_threshold = 0.0
# Per-key cooldown in minutes; 0 disables
#cooldown_minutes = 240
# Minimum zones required before a setup is considered; 0 disables
#min_zones_required = 2
# Minimum risk:reward for TP1
min_rr = 1.5
# Volume spike = volume / 20-period average above this
volume_spike_threshold = 1.5
# Require the volume gate on ENTRY signals
require_volume_confirmation = false
# Log signals instead of delivering them
dry_run = false

[analysis]
# Pivot detection window (candles each side)
pivot_window = 5
# Candles considered when building zones
zone_lookback = 200
# Zone half-width as percent of the pivot price
zone_tolerance_pct = 0.5
# Stop-loss buffer past the zone edge, percent
zone_sl_buffer_pct = 0.1
atr_period = 14
sweep_lookback = 10
structure_lookback = 50
# Anti-chase extension limits
anti_chase_max_atr = 2.0
anti_chase_max_pct = 2.0
# Score bonus for an aligned RSI divergence
rsi_divergence_bonus = 10.0
# HTF bias weights
htf_weight_1d = 0.6
htf_weight_4h = 0.4

[exchange]
rest_url = "https://api.bybit.com"
ws_url = "wss://stream.bybit.com/v5/public/linear"
category = "linear"
backfill_limit = 200

[store]
# SQLite database for signals and cooldowns; defaults under the config dir
#path = ""

[metrics]
enabled = false
listen_addr = ":9874"

[notifications]
enabled = true
# Print signals to the terminal
terminal = true

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[log]
level = "info"
console = true
file = true
#file_path = ""
`

// WriteTemplate writes the default config template into configDir,
// refusing to overwrite an existing file.
func WriteTemplate(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}
