package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("minimal config gets defaults", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "")
		path := writeConfig(t, `{"token": "gho_abc123"}`)

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Token != "gho_abc123" {
			t.Errorf("Token = %q, want %q", cfg.Token, "gho_abc123")
		}
		if cfg.CompletionsURL == "" || cfg.ModelsURL == "" || cfg.EmbeddingsURL == "" || cfg.TokenURL == "" {
			t.Error("expected endpoint defaults to be filled in")
		}
		if cfg.DefaultModel == "" {
			t.Error("expected default model")
		}
		if cfg.Temperature == nil {
			t.Error("expected default temperature")
		}
		if cfg.Insecure == nil || *cfg.Insecure {
			t.Error("Insecure should default to false")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "")
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
		if !errors.Is(err, ErrNoConfig) {
			t.Errorf("err = %v, want ErrNoConfig", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "")
		path := writeConfig(t, `{"default_model": "gpt-4"}`)
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrNoToken) {
			t.Errorf("err = %v, want ErrNoToken", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeConfig(t, `{not json`)
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("err = %v, want ErrInvalidJSON", err)
		}
	})

	t.Run("env token overrides file", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "gho_env")
		path := writeConfig(t, `{"token": "gho_file"}`)

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Token != "gho_env" {
			t.Errorf("Token = %q, want env override", cfg.Token)
		}
	})

	t.Run("env token without file", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "gho_env")
		cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Token != "gho_env" {
			t.Errorf("Token = %q, want env token", cfg.Token)
		}
		if cfg.CompletionsURL == "" {
			t.Error("expected defaults with env-only credential")
		}
	})

	t.Run("explicit values preserved", func(t *testing.T) {
		t.Setenv("COCHAT_TOKEN", "")
		path := writeConfig(t, `{
			"token": "gho_abc",
			"completions_url": "https://proxy.internal/chat",
			"default_model": "gpt-4o",
			"temperature": 0.7,
			"insecure": true
		}`)

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.CompletionsURL != "https://proxy.internal/chat" {
			t.Errorf("CompletionsURL = %q, want explicit value", cfg.CompletionsURL)
		}
		if cfg.DefaultModel != "gpt-4o" {
			t.Errorf("DefaultModel = %q, want gpt-4o", cfg.DefaultModel)
		}
		if *cfg.Temperature != 0.7 {
			t.Errorf("Temperature = %v, want 0.7", *cfg.Temperature)
		}
		if !*cfg.Insecure {
			t.Error("Insecure = false, want true")
		}
	})
}
