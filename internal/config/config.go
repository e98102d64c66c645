package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SimulatorConfig holds the sensor identity, pacing, and sampling ranges
type SimulatorConfig struct {
	SensorID string        `mapstructure:"sensor_id"`
	Location string        `mapstructure:"location"`
	Interval time.Duration `mapstructure:"interval"`
	Seed     int64         `mapstructure:"seed"`
	Water    WaterConfig   `mapstructure:"water"`
	Fund     FundConfig    `mapstructure:"fund"`
}

// WaterConfig holds normal-range water sampling parameters
type WaterConfig struct {
	PHMin               float64 `mapstructure:"ph_min"`
	PHMax               float64 `mapstructure:"ph_max"`
	TurbidityMin        int     `mapstructure:"turbidity_min"`
	TurbidityMax        int     `mapstructure:"turbidity_max"`
	ContaminationChance float64 `mapstructure:"contamination_chance"`
	TemperatureMin      float64 `mapstructure:"temperature_min"`
	TemperatureMax      float64 `mapstructure:"temperature_max"`
}

// FundConfig holds normal-range fund sampling parameters
type FundConfig struct {
	AllocatedMin int     `mapstructure:"allocated_min"`
	AllocatedMax int     `mapstructure:"allocated_max"`
	UtilizedMin  float64 `mapstructure:"utilized_min"`
	UtilizedMax  float64 `mapstructure:"utilized_max"`
	FraudChance  float64 `mapstructure:"fraud_chance"`
}

// LedgerConfig holds audit ledger configuration
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// DashboardConfig holds dashboard API configuration
type DashboardConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelegramConfig holds Telegram alerting configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("GUARDIAN_SIM")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Simulator defaults
	v.SetDefault("simulator.sensor_id", "guardian_node_001")
	v.SetDefault("simulator.location", "village_center")
	v.SetDefault("simulator.interval", "5s")
	v.SetDefault("simulator.seed", 0)
	v.SetDefault("simulator.water.ph_min", 6.5)
	v.SetDefault("simulator.water.ph_max", 8.5)
	v.SetDefault("simulator.water.turbidity_min", 1)
	v.SetDefault("simulator.water.turbidity_max", 80)
	v.SetDefault("simulator.water.contamination_chance", 0.05)
	v.SetDefault("simulator.water.temperature_min", 15.0)
	v.SetDefault("simulator.water.temperature_max", 30.0)
	v.SetDefault("simulator.fund.allocated_min", 5000)
	v.SetDefault("simulator.fund.allocated_max", 50000)
	v.SetDefault("simulator.fund.utilized_min", 0.6)
	v.SetDefault("simulator.fund.utilized_max", 0.95)
	v.SetDefault("simulator.fund.fraud_chance", 0.1)

	// Ledger defaults
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.db_path", "./data/guardian-ledger.db")

	// Dashboard defaults
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.listen_addr", ":8080")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid. Inverted sampling
// ranges and out-of-range chances are rejected here, at construction time;
// the simulator itself assumes well-formed ranges.
func (c *Config) Validate() error {
	// Validate Simulator config
	if c.Simulator.SensorID == "" {
		return fmt.Errorf("simulator.sensor_id is required")
	}
	if c.Simulator.Location == "" {
		return fmt.Errorf("simulator.location is required")
	}
	if c.Simulator.Interval < 0 {
		return fmt.Errorf("simulator.interval must not be negative")
	}

	if c.Simulator.Water.PHMin > c.Simulator.Water.PHMax {
		return fmt.Errorf("simulator.water.ph_min must not exceed ph_max")
	}
	if c.Simulator.Water.PHMin < 0 || c.Simulator.Water.PHMax > 14 {
		return fmt.Errorf("simulator.water pH range must lie within [0, 14]")
	}
	if c.Simulator.Water.TurbidityMin > c.Simulator.Water.TurbidityMax {
		return fmt.Errorf("simulator.water.turbidity_min must not exceed turbidity_max")
	}
	if c.Simulator.Water.TurbidityMin < 0 {
		return fmt.Errorf("simulator.water.turbidity_min must not be negative")
	}
	if c.Simulator.Water.ContaminationChance < 0 || c.Simulator.Water.ContaminationChance > 1 {
		return fmt.Errorf("simulator.water.contamination_chance must be between 0.0 and 1.0")
	}
	if c.Simulator.Water.TemperatureMin > c.Simulator.Water.TemperatureMax {
		return fmt.Errorf("simulator.water.temperature_min must not exceed temperature_max")
	}

	if c.Simulator.Fund.AllocatedMin > c.Simulator.Fund.AllocatedMax {
		return fmt.Errorf("simulator.fund.allocated_min must not exceed allocated_max")
	}
	if c.Simulator.Fund.AllocatedMin < 0 {
		return fmt.Errorf("simulator.fund.allocated_min must not be negative")
	}
	if c.Simulator.Fund.UtilizedMin > c.Simulator.Fund.UtilizedMax {
		return fmt.Errorf("simulator.fund.utilized_min must not exceed utilized_max")
	}
	if c.Simulator.Fund.UtilizedMin < 0 {
		return fmt.Errorf("simulator.fund.utilized_min must not be negative")
	}
	if c.Simulator.Fund.FraudChance < 0 || c.Simulator.Fund.FraudChance > 1 {
		return fmt.Errorf("simulator.fund.fraud_chance must be between 0.0 and 1.0")
	}

	// Validate Ledger config
	if c.Ledger.Enabled && c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required when ledger is enabled")
	}

	// Validate Dashboard config
	if c.Dashboard.Enabled {
		if c.Dashboard.ListenAddr == "" {
			return fmt.Errorf("dashboard.listen_addr is required when dashboard is enabled")
		}
		if !c.Ledger.Enabled {
			return fmt.Errorf("dashboard requires the ledger to be enabled")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
