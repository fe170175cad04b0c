package config

import (
	"fmt"
	"net/url"
	"strconv"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if cfg.API.Namespace == "" {
		return fmt.Errorf("api.namespace must not be empty")
	}
	if cfg.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be > 0")
	}
	if cfg.API.Concurrency < 1 {
		return fmt.Errorf("api.concurrency must be >= 1, got %d", cfg.API.Concurrency)
	}
	if cfg.API.Concurrency > 64 {
		return fmt.Errorf("api.concurrency must be <= 64, got %d", cfg.API.Concurrency)
	}
	if cfg.API.MaxBodySize <= 0 {
		return fmt.Errorf("api.max_body_size must be > 0")
	}

	if cfg.Processing.FillValue == "" {
		return fmt.Errorf("processing.fill_value must not be empty")
	}
	for id := range cfg.Processing.Classes {
		if _, err := strconv.Atoi(id); err != nil {
			return fmt.Errorf("processing.classes key %q is not a talent tree id", id)
		}
	}

	if cfg.Forums.MaxPages < 1 {
		return fmt.Errorf("forums.max_pages must be >= 1, got %d", cfg.Forums.MaxPages)
	}
	if cfg.Forums.PolitenessDelay < 0 {
		return fmt.Errorf("forums.politeness_delay must be >= 0")
	}
	for _, rule := range cfg.Forums.Rules {
		if rule.Name == "" || rule.Selector == "" {
			return fmt.Errorf("forums.rules entries need a name and a selector")
		}
	}

	validStorageTypes := map[string]bool{
		"csv": true, "json": true, "mongodb": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, json, mongodb)", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
