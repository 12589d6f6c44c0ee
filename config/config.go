package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/sigrun/pnl"
	"github.com/rustyeddy/sigrun/signal"
)

// Config is the process-wide engine configuration. Percent values are whole
// percents (0.1 means 0.1%).
type Config struct {
	// Live loop cadence.
	TickTTLMillis int `json:"tick_ttl_ms" yaml:"tick_ttl_ms"`

	// Signal lifecycle bounds.
	ScheduleAwaitMinutes     float64 `json:"schedule_await_minutes" yaml:"schedule_await_minutes"`
	MaxSignalLifetimeMinutes float64 `json:"max_signal_lifetime_minutes" yaml:"max_signal_lifetime_minutes"`

	// Costs.
	PercentSlippage float64 `json:"percent_slippage" yaml:"percent_slippage"`
	PercentFee      float64 `json:"percent_fee" yaml:"percent_fee"`

	// Validation distances.
	MinTakeProfitDistancePercent float64 `json:"min_takeprofit_distance_percent" yaml:"min_takeprofit_distance_percent"`
	MinStopLossDistancePercent   float64 `json:"min_stoploss_distance_percent" yaml:"min_stoploss_distance_percent"`
	MaxStopLossDistancePercent   float64 `json:"max_stoploss_distance_percent" yaml:"max_stoploss_distance_percent"`

	// Milestones.
	BreakevenThreshold      float64 `json:"breakeven_threshold" yaml:"breakeven_threshold"`
	PartialLevelStepPercent float64 `json:"partial_level_step_percent" yaml:"partial_level_step_percent"`

	// Candle plumbing.
	AvgPriceCandlesCount       int `json:"avg_price_candles_count" yaml:"avg_price_candles_count"`
	MaxCandlesPerRequest       int `json:"max_candles_per_request" yaml:"max_candles_per_request"`
	GetCandlesRetryCount       int `json:"get_candles_retry_count" yaml:"get_candles_retry_count"`
	GetCandlesRetryDelayMillis int `json:"get_candles_retry_delay_ms" yaml:"get_candles_retry_delay_ms"`

	// Backtest driver forward-candle slack, in minutes.
	BacktestBufferMinutes int `json:"backtest_buffer_minutes" yaml:"backtest_buffer_minutes"`

	// Live persistence root directory.
	PersistRoot string `json:"persist_root" yaml:"persist_root"`

	Journal Journal `json:"journal" yaml:"journal"`
}

// Journal configures the optional signal journal sink.
type Journal struct {
	Type   string `json:"type" yaml:"type"` // "", "csv" or "sqlite"
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		TickTTLMillis:                60001,
		ScheduleAwaitMinutes:         120,
		MaxSignalLifetimeMinutes:     10080,
		PercentSlippage:              0.1,
		PercentFee:                   0.1,
		MinTakeProfitDistancePercent: 0.1,
		MinStopLossDistancePercent:   0.2,
		MaxStopLossDistancePercent:   5,
		BreakevenThreshold:           0.1,
		PartialLevelStepPercent:      10,
		AvgPriceCandlesCount:         5,
		MaxCandlesPerRequest:         1000,
		GetCandlesRetryCount:         3,
		GetCandlesRetryDelayMillis:   1000,
		BacktestBufferMinutes:        15,
		PersistRoot:                  "./data",
	}
}

// LoadFromFile reads YAML or JSON based on content, trying YAML first.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths, JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.TickTTLMillis <= 0 {
		return fmt.Errorf("tick_ttl_ms must be positive")
	}
	if c.ScheduleAwaitMinutes <= 0 {
		return fmt.Errorf("schedule_await_minutes must be positive")
	}
	if c.MaxSignalLifetimeMinutes <= 0 {
		return fmt.Errorf("max_signal_lifetime_minutes must be positive")
	}
	if c.PercentSlippage < 0 || c.PercentFee < 0 {
		return fmt.Errorf("percent_slippage and percent_fee must not be negative")
	}
	if c.MinStopLossDistancePercent <= 0 {
		return fmt.Errorf("min_stoploss_distance_percent must be positive")
	}
	if c.MaxStopLossDistancePercent <= c.MinStopLossDistancePercent {
		return fmt.Errorf("max_stoploss_distance_percent must exceed min_stoploss_distance_percent")
	}
	if c.BreakevenThreshold < 0 {
		return fmt.Errorf("breakeven_threshold must not be negative")
	}
	if c.PartialLevelStepPercent <= 0 {
		return fmt.Errorf("partial_level_step_percent must be positive")
	}
	if c.AvgPriceCandlesCount <= 0 {
		return fmt.Errorf("avg_price_candles_count must be positive")
	}
	if c.MaxCandlesPerRequest <= 0 {
		return fmt.Errorf("max_candles_per_request must be positive")
	}
	if c.GetCandlesRetryCount < 0 || c.GetCandlesRetryDelayMillis < 0 {
		return fmt.Errorf("candle retry settings must not be negative")
	}
	if c.BacktestBufferMinutes < 0 {
		return fmt.Errorf("backtest_buffer_minutes must not be negative")
	}
	switch c.Journal.Type {
	case "", "csv", "sqlite":
	default:
		return fmt.Errorf("journal.type must be empty, 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && c.Journal.File == "" {
		return fmt.Errorf("journal.file required for csv journal")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required for sqlite journal")
	}
	return nil
}

// TickTTL is the live loop sleep between ticks.
func (c *Config) TickTTL() time.Duration {
	return time.Duration(c.TickTTLMillis) * time.Millisecond
}

// ScheduleAwait is how long a scheduled signal waits for its entry touch.
func (c *Config) ScheduleAwait() time.Duration {
	return time.Duration(c.ScheduleAwaitMinutes * float64(time.Minute))
}

// RetryDelay is the pause between candle fetch retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.GetCandlesRetryDelayMillis) * time.Millisecond
}

// Costs bundles the fee and slippage percents for the PnL calculator.
func (c *Config) Costs() pnl.Costs {
	return pnl.Costs{FeePercent: c.PercentFee, SlippagePercent: c.PercentSlippage}
}

// Limits bundles the proposal validation bounds.
func (c *Config) Limits() signal.Limits {
	return signal.Limits{
		PercentFee:                   c.PercentFee,
		PercentSlippage:              c.PercentSlippage,
		MinTakeProfitDistancePercent: c.MinTakeProfitDistancePercent,
		MinStopLossDistancePercent:   c.MinStopLossDistancePercent,
		MaxStopLossDistancePercent:   c.MaxStopLossDistancePercent,
		MaxSignalLifetimeMinutes:     c.MaxSignalLifetimeMinutes,
	}
}
