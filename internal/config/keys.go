package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SKINQUIZ_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "SKINQUIZ_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SKINQUIZ_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "services.base_url", typ: kString, env: "SKINQUIZ_SERVICES_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Services.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Services.BaseURL },
	},
	{
		key: "storefront.base_url", typ: kString, env: "SKINQUIZ_STOREFRONT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Storefront.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Storefront.BaseURL },
	},
	{
		key: "checkout.bundle_sku", typ: kInt, env: "SKINQUIZ_CHECKOUT_BUNDLE_SKU",
		apply:   func(cfg *Config, v any) { cfg.Storefront.BundleSKU = v.(int) },
		extract: func(cfg Config) any { return cfg.Storefront.BundleSKU },
	},
	{
		key: "analytics.endpoint", typ: kString, env: "SKINQUIZ_ANALYTICS_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Analytics.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.Endpoint },
	},
	{
		key: "analytics.token", typ: kString, env: "SKINQUIZ_ANALYTICS_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Analytics.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.Token },
	},
	{
		key: "saga.call_timeout", typ: kString, env: "SKINQUIZ_SAGA_CALL_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Saga.CallTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Saga.CallTimeout },
	},
	{
		key: "saga.retry_poll", typ: kString, env: "SKINQUIZ_SAGA_RETRY_POLL",
		apply:   func(cfg *Config, v any) { cfg.Saga.RetryPoll = v.(string) },
		extract: func(cfg Config) any { return cfg.Saga.RetryPoll },
	},
	{
		key: "api.token", typ: kString, env: "SKINQUIZ_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

func envName(key string) string {
	for _, s := range specs {
		if s.key == key {
			return s.env
		}
	}
	return ""
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
