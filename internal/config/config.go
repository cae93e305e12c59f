package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	Services   ServicesConfig
	Storefront StorefrontConfig
	Analytics  AnalyticsConfig
	Saga       SagaConfig
	API        APIConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	DataDir string
}

// ServicesConfig points at the quiz backend that fronts the catalog and
// the records database.
type ServicesConfig struct {
	BaseURL string
}

type StorefrontConfig struct {
	BaseURL   string
	BundleSKU int
}

type AnalyticsConfig struct {
	Endpoint string
	Token    string
}

type SagaConfig struct {
	CallTimeout string
	RetryPoll   string
}

// Timeout parses CallTimeout. An invalid value falls back to 15s.
func (s SagaConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(s.CallTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// PollInterval parses the reconcile worker poll interval. An invalid value
// falls back to 5s.
func (s SagaConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(s.RetryPoll)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server:     ServerConfig{Port: 4100},
		Log:        LogConfig{Level: "info"},
		Storage:    StorageConfig{DataDir: defaultDataDir()},
		Services:   ServicesConfig{BaseURL: "http://localhost:3001"},
		Storefront: StorefrontConfig{BaseURL: "https://baseplus.co.uk", BundleSKU: 6784},
		Analytics:  AnalyticsConfig{Endpoint: "https://api-eu.mixpanel.com/track"},
		Saga:       SagaConfig{CallTimeout: "15s", RetryPoll: "5s"},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/skinquiz/config.json and applies SKINQUIZ_* environment
// overrides. Secrets are read from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if cfg.Services.BaseURL == "" {
		return Config{}, fmt.Errorf("missing required config: services.base_url")
	}
	return cfg, nil
}

// RequireAPIToken reports an error when the bearer token for the HTTP API
// is not configured.
func (c Config) RequireAPIToken() error {
	if c.API.Token == "" {
		return fmt.Errorf("missing required config: API token. Set it via environment variable %s", envName("api.token"))
	}
	return nil
}
