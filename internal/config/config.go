// Package config provides configuration management for the signal pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bybit-sentinel/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Market        MarketConfig       `mapstructure:"market"`
	Signals       SignalConfig       `mapstructure:"signals"`
	Analysis      AnalysisConfig     `mapstructure:"analysis"`
	Exchange      ExchangeConfig     `mapstructure:"exchange"`
	Store         StoreConfig        `mapstructure:"store"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Log           LogConfig          `mapstructure:"log"`
}

// MarketConfig selects the instruments and timeframes to ingest.
type MarketConfig struct {
	Symbols         []string           `mapstructure:"symbols"`
	Timeframes      []models.Timeframe `mapstructure:"timeframes"`
	EntryTimeframes []models.Timeframe `mapstructure:"entry_timeframes"`
	HTFTimeframes   []models.Timeframe `mapstructure:"htf_timeframes"`
}

// SignalConfig holds the signal gates and stage settings.
type SignalConfig struct {
	Mode                      string   `mapstructure:"mode"` // "pro", "aggressive"
	StagesEnabled             []string `mapstructure:"stages_enabled"`
	MinScore                  float64  `mapstructure:"min_score"`
	SetupScoreThreshold       float64  `mapstructure:"setup_score_threshold"`
	EntryScoreThreshold       float64  `mapstructure:"entry_score_threshold"`
	CooldownMinutes           int      `mapstructure:"cooldown_minutes"`
	MinZonesRequired          int      `mapstructure:"min_zones_required"`
	MinRR                     float64  `mapstructure:"min_rr"`
	VolumeSpikeThreshold      float64  `mapstructure:"volume_spike_threshold"`
	RequireVolumeConfirmation bool     `mapstructure:"require_volume_confirmation"`
	DryRun                    bool     `mapstructure:"dry_run"`
}

// AnalysisConfig tunes the price-action analytics.
type AnalysisConfig struct {
	PivotWindow        int     `mapstructure:"pivot_window"`
	ZoneLookback       int     `mapstructure:"zone_lookback"`
	ZoneTolerancePct   float64 `mapstructure:"zone_tolerance_pct"`
	ZoneSLBufferPct    float64 `mapstructure:"zone_sl_buffer_pct"`
	ATRPeriod          int     `mapstructure:"atr_period"`
	SweepLookback      int     `mapstructure:"sweep_lookback"`
	StructureLookback  int     `mapstructure:"structure_lookback"`
	AntiChaseMaxATR    float64 `mapstructure:"anti_chase_max_atr"`
	AntiChaseMaxPct    float64 `mapstructure:"anti_chase_max_pct"`
	RSIDivergenceBonus float64 `mapstructure:"rsi_divergence_bonus"`
	HTFWeight1d        float64 `mapstructure:"htf_weight_1d"`
	HTFWeight4h        float64 `mapstructure:"htf_weight_4h"`
}

// ZoneTolerance returns the zone tolerance as a fraction.
func (a AnalysisConfig) ZoneTolerance() float64 {
	return a.ZoneTolerancePct / 100
}

// ZoneSLBuffer returns the stop-loss buffer as a fraction.
func (a AnalysisConfig) ZoneSLBuffer() float64 {
	return a.ZoneSLBufferPct / 100
}

// ExchangeConfig points the adapters at the exchange endpoints.
type ExchangeConfig struct {
	RESTURL       string `mapstructure:"rest_url"`
	WSURL         string `mapstructure:"ws_url"`
	Category      string `mapstructure:"category"` // "linear", "inverse", "spot"
	BackfillLimit int    `mapstructure:"backfill_limit"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Terminal bool           `mapstructure:"terminal"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/sentinel"
	}
	return filepath.Join(home, ".config", "sentinel")
}

// Load loads configuration from the specified directory, then applies
// environment overrides. A missing config file is not an error: the
// defaults plus environment cover every recognised option. If configDir
// is empty, the default config directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A .env next to the working directory is picked up before the
	// environment is read. Missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	// Mode presets are a defaults layer: explicit file or env values win.
	applyModeDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("market.symbols", []string{"BTCUSDT"})
	v.SetDefault("market.timeframes", []string{"1d", "4h", "1h"})
	v.SetDefault("market.entry_timeframes", []string{"1h"})
	v.SetDefault("market.htf_timeframes", []string{"1d", "4h"})

	v.SetDefault("signals.mode", "pro")
	v.SetDefault("signals.stages_enabled", []string{"entry"})
	v.SetDefault("signals.setup_score_threshold", 50.0)
	v.SetDefault("signals.min_rr", 1.5)
	v.SetDefault("signals.volume_spike_threshold", 1.5)
	v.SetDefault("signals.require_volume_confirmation", false)
	v.SetDefault("signals.dry_run", false)

	v.SetDefault("analysis.pivot_window", 5)
	v.SetDefault("analysis.zone_lookback", 200)
	v.SetDefault("analysis.zone_tolerance_pct", 0.5)
	v.SetDefault("analysis.zone_sl_buffer_pct", 0.1)
	v.SetDefault("analysis.atr_period", 14)
	v.SetDefault("analysis.sweep_lookback", 10)
	v.SetDefault("analysis.structure_lookback", 50)
	v.SetDefault("analysis.anti_chase_max_atr", 2.0)
	v.SetDefault("analysis.anti_chase_max_pct", 2.0)
	v.SetDefault("analysis.rsi_divergence_bonus", 10.0)
	v.SetDefault("analysis.htf_weight_1d", 0.6)
	v.SetDefault("analysis.htf_weight_4h", 0.4)

	v.SetDefault("exchange.rest_url", "https://api.bybit.com")
	v.SetDefault("exchange.ws_url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("exchange.category", "linear")
	v.SetDefault("exchange.backfill_limit", 200)

	v.SetDefault("store.path", filepath.Join(configDir, "sentinel.db"))

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9874")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.terminal", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "sentinel.log"))
}

// applyModeDefaults sets the preset bundle for the selected mode.
func applyModeDefaults(v *viper.Viper) {
	switch v.GetString("signals.mode") {
	case "aggressive":
		v.SetDefault("signals.min_score", 55.0)
		v.SetDefault("signals.min_zones_required", 1)
		v.SetDefault("signals.cooldown_minutes", 60)
	default: // pro
		v.SetDefault("signals.min_score", 70.0)
		v.SetDefault("signals.min_zones_required", 2)
		v.SetDefault("signals.cooldown_minutes", 240)
	}
}

func applyEnvOverrides(cfg *Config) error {
	if raw := os.Getenv("SYMBOLS"); raw != "" {
		cfg.Market.Symbols = splitList(raw)
	}
	if err := envTimeframes("TIMEFRAMES", &cfg.Market.Timeframes); err != nil {
		return err
	}
	if err := envTimeframes("ENTRY_TIMEFRAMES", &cfg.Market.EntryTimeframes); err != nil {
		return err
	}
	if err := envTimeframes("HTF_TIMEFRAMES", &cfg.Market.HTFTimeframes); err != nil {
		return err
	}
	if raw := os.Getenv("SIGNAL_MODE"); raw != "" {
		cfg.Signals.Mode = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw := os.Getenv("SIGNAL_STAGE_ENABLED"); raw != "" {
		cfg.Signals.StagesEnabled = splitList(strings.ToLower(raw))
	}
	if err := envFloat("MIN_SIGNAL_SCORE", &cfg.Signals.MinScore); err != nil {
		return err
	}
	if err := envFloat("SETUP_SCORE_THRESHOLD", &cfg.Signals.SetupScoreThreshold); err != nil {
		return err
	}
	if err := envFloat("ENTRY_SCORE_THRESHOLD", &cfg.Signals.EntryScoreThreshold); err != nil {
		return err
	}
	if err := envInt("SIGNAL_COOLDOWN_MINUTES", &cfg.Signals.CooldownMinutes); err != nil {
		return err
	}
	if err := envInt("MIN_ZONES_REQUIRED", &cfg.Signals.MinZonesRequired); err != nil {
		return err
	}
	if err := envFloat("MIN_RR", &cfg.Signals.MinRR); err != nil {
		return err
	}
	if err := envFloat("VOLUME_SPIKE_THRESHOLD", &cfg.Signals.VolumeSpikeThreshold); err != nil {
		return err
	}
	if err := envBool("REQUIRE_VOLUME_CONFIRMATION", &cfg.Signals.RequireVolumeConfirmation); err != nil {
		return err
	}
	if err := envBool("DRY_RUN", &cfg.Signals.DryRun); err != nil {
		return err
	}
	if err := envInt("PIVOT_WINDOW", &cfg.Analysis.PivotWindow); err != nil {
		return err
	}
	if err := envInt("ZONE_LOOKBACK", &cfg.Analysis.ZoneLookback); err != nil {
		return err
	}
	if err := envFloat("ZONE_TOLERANCE_PCT", &cfg.Analysis.ZoneTolerancePct); err != nil {
		return err
	}
	if err := envFloat("ZONE_SL_BUFFER_PCT", &cfg.Analysis.ZoneSLBufferPct); err != nil {
		return err
	}
	if err := envInt("ATR_PERIOD", &cfg.Analysis.ATRPeriod); err != nil {
		return err
	}
	if err := envInt("SWEEP_LOOKBACK", &cfg.Analysis.SweepLookback); err != nil {
		return err
	}
	if err := envInt("STRUCTURE_LOOKBACK", &cfg.Analysis.StructureLookback); err != nil {
		return err
	}
	if err := envFloat("ANTI_CHASE_MAX_ATR", &cfg.Analysis.AntiChaseMaxATR); err != nil {
		return err
	}
	if err := envFloat("ANTI_CHASE_MAX_PCT", &cfg.Analysis.AntiChaseMaxPct); err != nil {
		return err
	}
	if err := envFloat("RSI_DIVERGENCE_BONUS", &cfg.Analysis.RSIDivergenceBonus); err != nil {
		return err
	}

	// Adapter and sink settings follow the same convention.
	if raw := os.Getenv("TELEGRAM_BOT_TOKEN"); raw != "" {
		cfg.Notifications.Telegram.BotToken = raw
		cfg.Notifications.Telegram.Enabled = true
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		cfg.Notifications.Telegram.ChatID = raw
	}
	if raw := os.Getenv("WEBHOOK_URL"); raw != "" {
		cfg.Notifications.Webhook.URL = raw
		cfg.Notifications.Webhook.Enabled = true
	}
	if raw := os.Getenv("STORE_PATH"); raw != "" {
		cfg.Store.Path = raw
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envTimeframes(key string, dst *[]models.Timeframe) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	tfs, err := models.ParseTimeframes(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = tfs
	return nil
}

func envInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	if len(c.Market.Timeframes) == 0 {
		return fmt.Errorf("no timeframes configured")
	}
	known := make(map[models.Timeframe]bool, len(c.Market.Timeframes))
	for _, tf := range c.Market.Timeframes {
		if tf.Duration() == 0 {
			return fmt.Errorf("unknown timeframe %q", tf)
		}
		known[tf] = true
	}
	for _, tf := range c.Market.EntryTimeframes {
		if !known[tf] {
			return fmt.Errorf("entry timeframe %q not in timeframes list", tf)
		}
	}
	for _, tf := range c.Market.HTFTimeframes {
		if !known[tf] {
			return fmt.Errorf("htf timeframe %q not in timeframes list", tf)
		}
	}

	if c.Signals.Mode != "pro" && c.Signals.Mode != "aggressive" {
		return fmt.Errorf("invalid signal mode: %s (must be 'pro' or 'aggressive')", c.Signals.Mode)
	}
	for _, stage := range c.Signals.StagesEnabled {
		if stage != "setup" && stage != "entry" {
			return fmt.Errorf("invalid signal stage: %s (must be 'setup' or 'entry')", stage)
		}
	}
	if c.Signals.MinScore < 0 || c.Signals.MinScore > 100+c.Analysis.RSIDivergenceBonus {
		return fmt.Errorf("min_score must be between 0 and %.0f", 100+c.Analysis.RSIDivergenceBonus)
	}
	if c.Signals.MinRR < 0 {
		return fmt.Errorf("min_rr must be non-negative")
	}
	if c.Signals.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must be non-negative")
	}
	if c.Signals.MinZonesRequired < 0 {
		return fmt.Errorf("min_zones_required must be non-negative")
	}
	if c.Signals.VolumeSpikeThreshold <= 0 {
		return fmt.Errorf("volume_spike_threshold must be positive")
	}

	if c.Analysis.PivotWindow < 1 {
		return fmt.Errorf("pivot_window must be at least 1")
	}
	if c.Analysis.ZoneLookback < 2*c.Analysis.PivotWindow+1 {
		return fmt.Errorf("zone_lookback %d too small for pivot window %d", c.Analysis.ZoneLookback, c.Analysis.PivotWindow)
	}
	if c.Analysis.ZoneTolerancePct <= 0 {
		return fmt.Errorf("zone_tolerance_pct must be positive")
	}
	if c.Analysis.ZoneSLBufferPct < 0 {
		return fmt.Errorf("zone_sl_buffer_pct must be non-negative")
	}
	if c.Analysis.ATRPeriod < 1 {
		return fmt.Errorf("atr_period must be at least 1")
	}
	if c.Analysis.AntiChaseMaxATR <= 0 || c.Analysis.AntiChaseMaxPct <= 0 {
		return fmt.Errorf("anti-chase thresholds must be positive")
	}
	if c.Analysis.HTFWeight1d < 0 || c.Analysis.HTFWeight4h < 0 {
		return fmt.Errorf("htf weights must be non-negative")
	}

	if c.Exchange.RESTURL == "" || c.Exchange.WSURL == "" {
		return fmt.Errorf("exchange endpoints must be configured")
	}
	if c.Exchange.BackfillLimit < 1 {
		return fmt.Errorf("backfill_limit must be at least 1")
	}
	return nil
}

// StageEnabled reports whether the given signal stage is active.
func (c *Config) StageEnabled(stage string) bool {
	for _, s := range c.Signals.StagesEnabled {
		if s == stage {
			return true
		}
	}
	return false
}

// EntryThreshold returns the effective ENTRY score gate: the dedicated
// threshold when set, else the legacy min score. Zero disables the gate.
func (c *Config) EntryThreshold() float64 {
	if c.Signals.EntryScoreThreshold > 0 {
		return c.Signals.EntryScoreThreshold
	}
	return c.Signals.MinScore
}

// SetupThreshold returns the effective SETUP score gate, falling back
// to the legacy min score. Zero disables the gate.
func (c *Config) SetupThreshold() float64 {
	if c.Signals.SetupScoreThreshold > 0 {
		return c.Signals.SetupScoreThreshold
	}
	return c.Signals.MinScore
}

// HTFWeights returns the timeframe weights used for bias aggregation.
func (c *Config) HTFWeights() map[models.Timeframe]float64 {
	return map[models.Timeframe]float64{
		models.TF1d: c.Analysis.HTFWeight1d,
		models.TF4h: c.Analysis.HTFWeight4h,
	}
}
