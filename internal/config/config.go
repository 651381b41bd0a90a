package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds SquatchScan configuration.
type Config struct {
	Server          ServerConfig              `yaml:"server"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	DefaultProvider string                    `yaml:"default_provider"`
	Sightings       SightingsConfig           `yaml:"sightings"`
	History         HistoryConfig             `yaml:"history"`
	Telemetry       TelemetryConfig           `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`             // HTTP listen address, e.g. ":8080"
	MaxUploadBytes int64  `yaml:"max_upload_bytes"` // multipart image size cap
}

type ProviderConfig struct {
	Type           string `yaml:"type"`            // "openai" (or "fake" for local runs)
	BaseURL        string `yaml:"base_url"`        // e.g. "https://api.openai.com/v1"
	APIKeyEnv      string `yaml:"api_key_env"`     // e.g. "OPENAI_API_KEY"
	Model          string `yaml:"model"`           // vision-capable model name
	TimeoutSeconds int    `yaml:"timeout_seconds"` // upstream call timeout
}

type SightingsConfig struct {
	Level      string `yaml:"level"`       // metadata | full
	File       string `yaml:"file"`        // append JSONL events here when set
	WebhookURL string `yaml:"webhook_url"` // POST events here when set
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file path
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 8 * 1024 * 1024,
		},
		Providers:       map[string]ProviderConfig{},
		DefaultProvider: "",
		Sightings: SightingsConfig{
			Level: "metadata",
		},
		History: HistoryConfig{
			Path: "squatchscan.db",
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 8 * 1024 * 1024
	}

	// If no default provider is set but there's exactly one provider,
	// use that as default.
	if cfg.DefaultProvider == "" && len(cfg.Providers) == 1 {
		for name := range cfg.Providers {
			cfg.DefaultProvider = name
			break
		}
	}

	if cfg.Sightings.Level == "" {
		cfg.Sightings.Level = "metadata"
	}

	if cfg.History.Path == "" {
		cfg.History.Path = "squatchscan.db"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}
