package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		APIAddr     string `yaml:"api_addr"`
		GatewayAddr string `yaml:"gateway_addr"`
	} `yaml:"server"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Markets struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"markets"`
	Orchestrator struct {
		PickTimeoutSeconds int `yaml:"pick_timeout_seconds"`
		Workers            int `yaml:"workers"`
	} `yaml:"orchestrator"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.APIAddr = ":8080"
	cfg.Server.GatewayAddr = ":8081"
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.Markets.TimeoutSeconds = 10
	cfg.Orchestrator.Workers = 4
	return &cfg
}

// loadConfig reads the yaml config file, then lets environment variables
// override individual values. A missing file is fine; defaults apply.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults + env only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.APIAddr = getEnv("API_ADDR", cfg.Server.APIAddr)
	cfg.Server.GatewayAddr = getEnv("GATEWAY_ADDR", cfg.Server.GatewayAddr)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Markets.BaseURL = getEnv("MARKETS_BASE_URL", cfg.Markets.BaseURL)
	cfg.Markets.APIKey = getEnv("MARKETS_API_KEY", cfg.Markets.APIKey)
	cfg.Markets.TimeoutSeconds = getEnvAsInt("MARKETS_TIMEOUT_SECONDS", cfg.Markets.TimeoutSeconds)
	cfg.Orchestrator.PickTimeoutSeconds = getEnvAsInt("PICK_TIMEOUT_SECONDS", cfg.Orchestrator.PickTimeoutSeconds)
	cfg.Orchestrator.Workers = getEnvAsInt("ORCHESTRATOR_WORKERS", cfg.Orchestrator.Workers)

	if cfg.Markets.BaseURL == "" {
		return nil, fmt.Errorf("markets base URL is required (config markets.base_url or MARKETS_BASE_URL)")
	}
	return cfg, nil
}

func (c *Config) PickTimeout() time.Duration {
	return time.Duration(c.Orchestrator.PickTimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
