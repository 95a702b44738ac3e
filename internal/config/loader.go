package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load loads config from the default path (~/.hirobot/config.json).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromFile(filepath.Join(home, ".hirobot", "config.json"))
}

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	expandDataDir(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies HIROBOT_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"HIROBOT_PROVIDERS_OPENAI_APIKEY":    &cfg.Providers.OpenAI.APIKey,
		"HIROBOT_PROVIDERS_ANTHROPIC_APIKEY": &cfg.Providers.Anthropic.APIKey,
		"HIROBOT_TELEGRAM_TOKEN":             &cfg.Telegram.Token,
		"HIROBOT_TELEGRAM_ADMIN_CHAT_ID":     &cfg.Telegram.AdminChatID,
		"HIROBOT_TELEGRAM_RECIPIENT_CHAT_ID": &cfg.Telegram.RecipientChatID,
		"HIROBOT_STORE_URL":                  &cfg.Store.URL,
		"HIROBOT_STORE_APIKEY":               &cfg.Store.APIKey,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}
}

// expandDataDir expands a leading ~ in the data dir path.
func expandDataDir(cfg *Config) {
	dir := cfg.Memory.DataDir
	if len(dir) >= 2 && dir[0] == '~' && dir[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Memory.DataDir = filepath.Join(home, dir[2:])
		}
	}
}

// validate rejects configs the bot cannot run with.
func validate(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Telegram.AdminChatID == "" {
		return fmt.Errorf("telegram.adminChatId is required")
	}
	if cfg.Telegram.RecipientChatID == "" {
		return fmt.Errorf("telegram.recipientChatId is required")
	}
	switch cfg.Providers.Default {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("providers.default must be %q or %q, got %q", "openai", "anthropic", cfg.Providers.Default)
	}
	return nil
}
