package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// KeyInfo is one row of `skinquiz config show`. Secret values are masked.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Secret bool
}

// ShowAll lists every key with its effective value. Tokens are reported as
// "(set)" or "(unset)" so the output can be pasted into a bug report.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		info := KeyInfo{Key: s.key, EnvVar: s.env, Secret: s.secret}
		v := fmt.Sprintf("%v", s.extract(cfg))
		switch {
		case !s.secret:
			info.Value = v
		case v == "":
			info.Value = "(unset)"
		default:
			info.Value = "(set)"
		}
		result = append(result, info)
	}
	return result
}

// SetKey validates value and writes it to the config file.
func SetKey(key, value string) error {
	return setKeyWith(newFileBackend(configFilePath()), key, value)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("%s is a secret; export %s or put it in .env", key, s.env)
	}
	if err := checkValue(key, value); err != nil {
		return err
	}

	if s.typ == kInt {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		if key == "server.port" && (i < 1 || i > 65535) {
			return fmt.Errorf("server.port %d out of range", i)
		}
		return b.SetInt(key, i)
	}
	return b.SetString(key, value)
}

// checkValue rejects values that Load would accept but the saga could not
// use, such as a relative service URL or a zero poll interval.
func checkValue(key, value string) error {
	switch {
	case key == "log.level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
			return nil
		}
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", value)

	case strings.HasPrefix(key, "saga."):
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, value)
		}

	case strings.HasSuffix(key, ".base_url"), strings.HasSuffix(key, ".endpoint"):
		u, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, value)
		}
	}
	return nil
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// ValidKeys returns the keys `skinquiz config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
