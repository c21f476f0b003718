package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration from defaults, an optional TOML file, and
// ARENA_* environment variables, in increasing order of precedence. A .env
// file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Database.URL, "ARENA_DATABASE_URL", "DATABASE_URL")
	setString(&cfg.Redis.Addr, "ARENA_REDIS_ADDR")
	setString(&cfg.Redis.Password, "ARENA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARENA_REDIS_DB")
	setInt(&cfg.Server.Port, "ARENA_PORT")
	setString(&cfg.Server.AdminKey, "ARENA_ADMIN_KEY")
	setInt64(&cfg.Engine.StartingBalance, "ARENA_STARTING_BALANCE")
	setInt64(&cfg.Engine.MinWager, "ARENA_MIN_WAGER")
	setInt64(&cfg.Engine.MaxWager, "ARENA_MAX_WAGER")
	setInt64(&cfg.Engine.FeeBps, "ARENA_FEE_BPS")
	setBool(&cfg.Engine.DemoMode, "ARENA_DEMO_MODE")
	setDuration(&cfg.Engine.ResolveInterval, "ARENA_RESOLVE_INTERVAL")
	setDuration(&cfg.Engine.SimulateInterval, "ARENA_SIMULATE_INTERVAL")
	setString(&cfg.LogLevel, "ARENA_LOG_LEVEL")

	if v := os.Getenv("ARENA_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("ARENA_TRUSTED_SOURCES"); v != "" {
		cfg.Engine.TrustedSources = splitList(v)
	}
	if v := os.Getenv("ARENA_BANNED_SOURCES"); v != "" {
		cfg.Engine.BannedSources = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
