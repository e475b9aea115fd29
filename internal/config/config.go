// Package config loads AeonConfig from flags, environment variables, and
// an optional config file, following the same viper/godotenv wiring the
// rest of the corpus uses for its CLI entry points.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AeonConfig carries every runtime-tunable parameter of the orchestration
// core: TTL limits, convergence thresholds, LM provider selection,
// telemetry sink, and logging.
type AeonConfig struct {
	Provider    string `mapstructure:"provider"`
	Model       string `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`

	GlobalTTLLimit int `mapstructure:"global-ttl-limit"`
	MaxPasses      int `mapstructure:"max-passes"`

	CompletenessThreshold float64 `mapstructure:"completeness-threshold"`
	CoherenceThreshold    float64 `mapstructure:"coherence-threshold"`
	ConsistencyThreshold  float64 `mapstructure:"consistency-threshold"`

	TelemetryPath string `mapstructure:"telemetry-path"`

	LogFile   string `mapstructure:"log-file"`
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// Defaults returns the config baseline before flags, env, or a config file
// are layered on top.
func Defaults() AeonConfig {
	return AeonConfig{
		Provider:              "openai",
		Model:                 "gpt-4o-mini",
		Temperature:           0.3,
		GlobalTTLLimit:        50,
		MaxPasses:             25,
		CompletenessThreshold: 0.95,
		CoherenceThreshold:    0.90,
		ConsistencyThreshold:  0.90,
		TelemetryPath:         "aeon-telemetry.jsonl",
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads ~/.aeon.yaml (or the file named by cfgFile), then environment
// variables, over Defaults(), mirroring the teacher CLI's initConfig order:
// .env first, then config file, then AutomaticEnv overrides.
func Load(cfgFile string) (AeonConfig, error) {
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg := Defaults()
	v := viper.New()
	v.SetDefault("provider", cfg.Provider)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("temperature", cfg.Temperature)
	v.SetDefault("global-ttl-limit", cfg.GlobalTTLLimit)
	v.SetDefault("max-passes", cfg.MaxPasses)
	v.SetDefault("completeness-threshold", cfg.CompletenessThreshold)
	v.SetDefault("coherence-threshold", cfg.CoherenceThreshold)
	v.SetDefault("consistency-threshold", cfg.ConsistencyThreshold)
	v.SetDefault("telemetry-path", cfg.TelemetryPath)
	v.SetDefault("log-file", cfg.LogFile)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("log-format", cfg.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".aeon")
	}

	v.SetEnvPrefix("AEON")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return AeonConfig{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return AeonConfig{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}
