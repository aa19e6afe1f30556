package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the config file location relative to the user
// config directory.
const DefaultFileName = "subtrans/config.json"

// FilePath resolves the config file location. SUBTRANS_CONFIG
// overrides the per-user default.
func FilePath() (string, error) {
	if path := os.Getenv("SUBTRANS_CONFIG"); path != "" {
		return path, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, DefaultFileName), nil
}

// Load reads the config file at path. A missing file yields the
// defaults; a present but unreadable file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := New()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save persists the config atomically (tmp file + rename), creating
// the directory if needed.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
