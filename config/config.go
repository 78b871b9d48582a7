package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TierWindow pairs a tier number with a duration and, for rate limits, a
// request count ceiling within that duration.
type TierWindow struct {
	Tier    int    `toml:"Tier"`
	Seconds int64  `toml:"Seconds"`
	Limit   uint32 `toml:"Limit"`
}

// Config is the kernel's runtime configuration.
type Config struct {
	Environment        string       `toml:"Environment"`
	NodeID             uint16       `toml:"NodeID"`
	LogFile            string       `toml:"LogFile"`
	PolicyFile         string       `toml:"PolicyFile"`
	PolicyDefaultEnable bool        `toml:"PolicyDefaultEnable"`
	ClockMaxDriftMS    uint64       `toml:"ClockMaxDriftMS"`
	FabricRetention    int64        `toml:"FabricRetentionSeconds"`
	ObservationWindows []TierWindow `toml:"ObservationWindows"`
	RateLimits         []TierWindow `toml:"RateLimits"`
}

// RetentionWindow returns the configured fabric retention window as a
// time.Duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.FabricRetention) * time.Second
}

// Load loads the configuration from the given path, creating a default
// file if none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ClockMaxDriftMS == 0 {
		cfg.ClockMaxDriftMS = 1000
	}
	if cfg.FabricRetention == 0 {
		cfg.FabricRetention = int64(24 * time.Hour / time.Second)
	}
	if len(cfg.ObservationWindows) == 0 {
		cfg.ObservationWindows = defaultObservationWindows()
	}
	if len(cfg.RateLimits) == 0 {
		cfg.RateLimits = defaultRateLimits()
	}
}

func defaultObservationWindows() []TierWindow {
	return []TierWindow{
		{Tier: 0, Seconds: 30 * 60},
		{Tier: 1, Seconds: 60 * 60},
		{Tier: 2, Seconds: 24 * 60 * 60},
		{Tier: 3, Seconds: 72 * 60 * 60},
	}
}

func defaultRateLimits() []TierWindow {
	return []TierWindow{
		{Tier: 0, Seconds: 60, Limit: 120},
		{Tier: 1, Seconds: 60, Limit: 60},
		{Tier: 2, Seconds: 60, Limit: 20},
		{Tier: 3, Seconds: 60, Limit: 5},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Environment:        "development",
		NodeID:             1,
		LogFile:            "./kernel.log",
		PolicyFile:         "./policy.yaml",
		PolicyDefaultEnable: true,
		ClockMaxDriftMS:    1000,
		FabricRetention:    int64(24 * time.Hour / time.Second),
		ObservationWindows: defaultObservationWindows(),
		RateLimits:         defaultRateLimits(),
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
