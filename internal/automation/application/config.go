package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the automation engine.
type Config struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	Workers         int           `yaml:"workers"`
	NotifyWebhook   string        `yaml:"notify_webhook"`
}

// LoadConfig loads config from yaml (ENGINE_CONFIG path) with env fallbacks.
func LoadConfig() (Config, error) {
	cfg := Config{
		TickInterval:    getenvDuration("ENGINE_TICK_INTERVAL", time.Minute),
		DispatchTimeout: getenvDuration("ENGINE_DISPATCH_TIMEOUT", 5*time.Second),
		Workers:         getenvIntDefault("ENGINE_WORKERS", 4),
		NotifyWebhook:   os.Getenv("ENGINE_NOTIFY_WEBHOOK"),
	}

	if path := os.Getenv("ENGINE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.TickInterval <= 0 {
		return cfg, errors.New("engine config: tick interval must be positive")
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 5 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return cfg, nil
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
