package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrNoConfig    = errors.New("config file not found")
	ErrNoToken     = errors.New("token not set in config")
	ErrInvalidJSON = errors.New("invalid config JSON")
)

// Config holds the global cochat configuration.
type Config struct {
	Token          string   `json:"token"`           // Long-lived OAuth token used for session-token exchange
	TokenURL       string   `json:"token_url"`       // Session-token exchange endpoint
	CompletionsURL string   `json:"completions_url"` // Chat completions endpoint
	ModelsURL      string   `json:"models_url"`      // Model catalog endpoint
	EmbeddingsURL  string   `json:"embeddings_url"`  // Embeddings endpoint
	DefaultModel   string   `json:"default_model"`
	Temperature    *float64 `json:"temperature"`
	Proxy          string   `json:"proxy"`    // Optional proxy URL for all requests
	Insecure       *bool    `json:"insecure"` // Skip TLS verification (default: false)
}

// Load reads the config from ~/.config/cochat/config.json.
// The COCHAT_TOKEN environment variable overrides the token from the file and
// also stands in for a missing file entirely.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "cochat", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	envToken := os.Getenv("COCHAT_TOKEN")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if envToken == "" {
				return nil, ErrNoConfig
			}
			cfg := &Config{Token: envToken}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	if envToken != "" {
		cfg.Token = envToken
	}
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://api.github.com/copilot_internal/v2/token"
	}
	if cfg.CompletionsURL == "" {
		cfg.CompletionsURL = "https://api.githubcopilot.com/chat/completions"
	}
	if cfg.ModelsURL == "" {
		cfg.ModelsURL = "https://api.githubcopilot.com/models"
	}
	if cfg.EmbeddingsURL == "" {
		cfg.EmbeddingsURL = "https://api.githubcopilot.com/embeddings"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4"
	}
	if cfg.Temperature == nil {
		t := 0.1
		cfg.Temperature = &t
	}
	if cfg.Insecure == nil {
		f := false
		cfg.Insecure = &f
	}
}
