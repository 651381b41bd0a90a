package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}

	for name, p := range cfg.Providers {
		if err := validateProviderConfig(name, p); err != nil {
			return err
		}
	}

	if cfg.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
			return fmt.Errorf("default_provider %q not found in providers", cfg.DefaultProvider)
		}
	}

	switch cfg.Sightings.Level {
	case "", "metadata", "full":
	default:
		return fmt.Errorf("sightings.level must be metadata or full, got %q", cfg.Sightings.Level)
	}
	if cfg.Sightings.WebhookURL != "" {
		if err := validateHTTPURL("sightings.webhook_url", cfg.Sightings.WebhookURL); err != nil {
			return err
		}
	}

	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return errors.New("history.path must be set when history is enabled")
	}

	if cfg.Telemetry.Enabled {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return errors.New("telemetry.endpoint must be set when telemetry is enabled")
		}
		switch strings.ToLower(cfg.Telemetry.Protocol) {
		case "", "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", cfg.Telemetry.Protocol)
		}
	}

	return nil
}

func validateProviderConfig(name string, p ProviderConfig) error {
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("provider %q missing type", name)
	}
	switch strings.ToLower(p.Type) {
	case "openai":
		if strings.TrimSpace(p.APIKeyEnv) == "" {
			return fmt.Errorf("provider %q missing api_key_env", name)
		}
	case "fake":
		// no required fields
	default:
		return fmt.Errorf("provider %q has unsupported type %q", name, p.Type)
	}

	if p.BaseURL != "" {
		if err := validateHTTPURL(fmt.Sprintf("provider %q base_url", name), p.BaseURL); err != nil {
			return err
		}
	}
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("provider %q timeout_seconds must not be negative", name)
	}

	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	return nil
}
