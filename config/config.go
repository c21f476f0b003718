// Package config defines the top-level configuration for the arena service
// and provides validation helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARENA_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RedisConfig holds Redis connection parameters for the observed-value and
// leaderboard caches. When Addr is empty the caches are disabled and reads
// fall through to the database.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminKey gates market curation and oracle push endpoints. When empty
	// those endpoints are disabled.
	AdminKey string `toml:"admin_key"`
}

// EngineConfig holds the wagering and settlement parameters.
type EngineConfig struct {
	// StartingBalance is the demo grant credited on first account reference,
	// in minor units.
	StartingBalance int64 `toml:"starting_balance"`

	// Wager amount bounds, in minor units.
	MinWager int64 `toml:"min_wager"`
	MaxWager int64 `toml:"max_wager"`

	// FeeBps is the protocol fee retained from the total pool at
	// resolution, in basis points (500 = 5%).
	FeeBps int64 `toml:"fee_bps"`

	// Points award parameters for winning wagers.
	BasePoints      int64 `toml:"base_points"`
	VolumePointsBps int64 `toml:"volume_points_bps"` // points per wagered unit, in basis points
	StreakBonus     int64 `toml:"streak_bonus"`

	// DemoMode replaces the deterministic oracle check with a biased
	// random draw and enables the observed-value simulator.
	DemoMode bool `toml:"demo_mode"`

	ResolveInterval  time.Duration `toml:"resolve_interval"`
	SimulateInterval time.Duration `toml:"simulate_interval"`

	ValueCacheTTL  time.Duration `toml:"value_cache_ttl"`
	LeaderboardTTL time.Duration `toml:"leaderboard_ttl"`

	// Source allow/deny lists for market curation. Oracle sources are
	// operator-controlled; markets citing anything else are rejected.
	TrustedSources []string `toml:"trusted_sources"`
	BannedSources  []string `toml:"banned_sources"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{},
		Redis:    RedisConfig{},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Engine: EngineConfig{
			StartingBalance:  100000,
			MinWager:         10,
			MaxWager:         100000,
			FeeBps:           500,
			BasePoints:       50,
			VolumePointsBps:  100,
			StreakBonus:      25,
			DemoMode:         false,
			ResolveInterval:  5 * time.Second,
			SimulateInterval: 30 * time.Second,
			ValueCacheTTL:    15 * time.Second,
			LeaderboardTTL:   30 * time.Second,
			TrustedSources: []string{
				"coingecko",
				"binance",
				"coinbase",
				"openweathermap",
				"steamcharts",
			},
			BannedSources: []string{
				"manual",
				"user-submitted",
			},
		},
		LogLevel: "info",
	}
}

// Validate checks that required fields are set and bounds are coherent.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Engine.StartingBalance < 0 {
		return fmt.Errorf("engine.starting_balance must not be negative")
	}
	if c.Engine.MinWager <= 0 {
		return fmt.Errorf("engine.min_wager must be positive")
	}
	if c.Engine.MaxWager < c.Engine.MinWager {
		return fmt.Errorf("engine.max_wager %d is below engine.min_wager %d", c.Engine.MaxWager, c.Engine.MinWager)
	}
	if c.Engine.FeeBps < 0 || c.Engine.FeeBps >= 10000 {
		return fmt.Errorf("engine.fee_bps %d is out of range [0, 10000)", c.Engine.FeeBps)
	}
	if c.Engine.ResolveInterval <= 0 {
		return fmt.Errorf("engine.resolve_interval must be positive")
	}
	if len(c.Engine.TrustedSources) == 0 {
		return fmt.Errorf("engine.trusted_sources must not be empty")
	}
	return nil
}
