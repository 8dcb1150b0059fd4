// Package config loads a session's AdaptiveConfig (and a handful of runtime
// settings) from a YAML file with environment-variable overrides.
//
// Grounded on internal/config/config.go's viper Load/Validate idiom from the
// market-making pack repo (mapstructure tags, SetEnvPrefix/AutomaticEnv,
// explicit sensitive-field overrides) — the teacher itself declares viper
// in go.mod but never wires it, so this package gives that dependency its
// home.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/atlas-desktop/paper-engine/pkg/types"
)

const envPrefix = "PAPERENGINE"

// RuntimeConfig wraps the per-asset AdaptiveConfig with the session's
// identity and data-source settings that aren't part of the decision core's
// own data model.
type RuntimeConfig struct {
	Asset        string               `mapstructure:"asset"`
	SessionName  string               `mapstructure:"session_name"`
	Timeframe    types.Timeframe      `mapstructure:"timeframe"`
	DataDir      string               `mapstructure:"data_dir"`
	LogLevel     string               `mapstructure:"log_level"`
	MetricsPort  int                  `mapstructure:"metrics_port"`
	Adaptive     types.AdaptiveConfig `mapstructure:"adaptive"`
}

// Load reads path (a YAML file) into a RuntimeConfig, applying
// PAPERENGINE_*-prefixed environment overrides (dots map to underscores,
// e.g. PAPERENGINE_ADAPTIVE_MAX_DRAWDOWN_THRESHOLD). envFile, if non-empty
// and present, is loaded into the process environment first via godotenv —
// useful for local development; missing envFile is not an error.
func Load(path, envFile string) (*RuntimeConfig, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

// Validate fails fast on an invalid config, per the ErrConfigInvalid error
// kind (§7): callers must reject it at session start, not mid-tick.
func (c *RuntimeConfig) Validate() error {
	if c.Asset == "" {
		return fmt.Errorf("%w: asset is required", types.ErrConfigInvalid)
	}
	if c.SessionName == "" {
		return fmt.Errorf("%w: session_name is required", types.ErrConfigInvalid)
	}
	if c.Timeframe.DurationMS() == 0 {
		return fmt.Errorf("%w: unknown timeframe %q", types.ErrConfigInvalid, c.Timeframe)
	}
	if err := c.Adaptive.Validate(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfigInvalid, err)
	}
	return nil
}
