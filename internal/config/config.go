// Package config holds the persisted translation settings and the
// parsing/merge rules around them. A Config is loaded once per run and
// passed through the pipeline as an immutable snapshot; nothing reads
// it ambiently.
package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

const (
	DefaultModel          = "gpt-5-nano"
	DefaultAPIURL         = "https://api.openai.com/v1/chat/completions"
	DefaultDelayMs        = 0
	DefaultRetryMode      = 0
	DefaultContextBudget  = 6000
	DefaultTruncationMode = "sliding_window"
	DefaultCacheMode      = CacheModeAuto
	DefaultTargetLanguage = "en"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

const (
	CacheModeAuto = "auto"
	CacheModeOff  = "off"
)

// Config is the full persisted configuration record.
type Config struct {
	APIKey         string          `json:"api_key"`
	SelectedModel  string          `json:"selected_model"`
	APIURL         string          `json:"api_url"`
	DelayMs        int             `json:"delay_ms"`
	RetryMode      int             `json:"retry_mode"`
	ContextBudget  int             `json:"context_budget"`
	TruncationMode string          `json:"truncation_mode"`
	CacheMode      string          `json:"cache_mode"`
	SourceLanguage string          `json:"source_language"`
	TargetLanguage string          `json:"target_language"`
	ModelLimits    TokenLimitRules `json:"model_token_limits"`
	UserAgent      string          `json:"user_agent"`
}

// New returns a Config populated with defaults.
func New() Config {
	return Config{
		SelectedModel:  DefaultModel,
		APIURL:         DefaultAPIURL,
		DelayMs:        DefaultDelayMs,
		RetryMode:      DefaultRetryMode,
		ContextBudget:  DefaultContextBudget,
		TruncationMode: DefaultTruncationMode,
		CacheMode:      DefaultCacheMode,
		TargetLanguage: DefaultTargetLanguage,
		ModelLimits:    DefaultTokenLimitRules(),
		UserAgent:      DefaultUserAgent,
	}
}

// ApplyEnv overlays the environment on top of the stored values.
//
// Environment Variables:
// - SUBTRANS_API_KEY: API key for the translation endpoint
// - SUBTRANS_API_URL: endpoint URL
// - SUBTRANS_MODEL: model identifier
func (c *Config) ApplyEnv() {
	c.APIKey = getEnvString("SUBTRANS_API_KEY", c.APIKey)
	c.APIURL = getEnvString("SUBTRANS_API_URL", c.APIURL)
	c.SelectedModel = getEnvString("SUBTRANS_MODEL", c.SelectedModel)
}

// NormalizeLanguages canonicalizes the language fields: an empty or
// "auto" source means auto-detect, an empty target falls back to
// English.
func (c *Config) NormalizeLanguages() {
	switch strings.ToLower(strings.TrimSpace(c.SourceLanguage)) {
	case "", "auto", "auto detect", "auto_detect":
		c.SourceLanguage = ""
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
}

// Validate checks field values that later stages depend on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SelectedModel) == "" {
		return fmt.Errorf("selected_model is required")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.DelayMs < 0 {
		return fmt.Errorf("delay_ms must not be negative")
	}
	if c.RetryMode < 0 {
		return fmt.Errorf("retry_mode must not be negative")
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("context_budget must be positive")
	}
	if c.CacheMode != CacheModeAuto && c.CacheMode != CacheModeOff {
		return fmt.Errorf("cache_mode must be %q or %q", CacheModeAuto, CacheModeOff)
	}
	if c.SourceLanguage != "" {
		if _, err := language.Parse(c.SourceLanguage); err != nil {
			return fmt.Errorf("invalid source_language %q: %w", c.SourceLanguage, err)
		}
	}
	if c.TargetLanguage != "" {
		if _, err := language.Parse(c.TargetLanguage); err != nil {
			return fmt.Errorf("invalid target_language %q: %w", c.TargetLanguage, err)
		}
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
