package config

import "strings"

// TokenLimitRule matches a model name and assigns it a max token
// count. Type is one of "prefix", "contains" or "equals".
type TokenLimitRule struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Tokens int    `json:"tokens"`
}

// TokenLimitRules is the model token-limit table: a default plus
// ordered match rules. First matching rule wins.
type TokenLimitRules struct {
	Default int              `json:"default"`
	Rules   []TokenLimitRule `json:"rules"`
}

// DefaultTokenLimitRules returns the built-in model limit table.
// First matching rule wins, so the broad "gpt-4" entry shadows the
// later "gpt-4o"/"gpt-4.1" entries and those models resolve to 8192.
// The ordering is deliberate; a custom table can put the narrower
// rules first.
func DefaultTokenLimitRules() TokenLimitRules {
	return TokenLimitRules{
		Default: 4096,
		Rules: []TokenLimitRule{
			{Type: "contains", Value: "gpt-4", Tokens: 8192},
			{Type: "contains", Value: "gpt-4o", Tokens: 128000},
			{Type: "contains", Value: "gpt-4.1", Tokens: 128000},
			{Type: "contains", Value: "gpt-4o-mini", Tokens: 128000},
			{Type: "contains", Value: "gpt-5", Tokens: 128000},
			{Type: "contains", Value: "o1", Tokens: 128000},
			{Type: "contains", Value: "gemini", Tokens: 122880},
		},
	}
}

// MaxModelTokens resolves the max token count for the configured model.
func (c Config) MaxModelTokens() int {
	rules := c.ModelLimits
	def := rules.Default
	if def <= 0 {
		def = 4096
	}

	model := strings.TrimSpace(c.SelectedModel)
	if model == "" {
		return def
	}

	for _, rule := range rules.Rules {
		if rule.Tokens <= 0 || rule.Value == "" {
			continue
		}
		switch rule.Type {
		case "prefix":
			if strings.HasPrefix(model, rule.Value) {
				return rule.Tokens
			}
		case "contains":
			if strings.Contains(model, rule.Value) {
				return rule.Tokens
			}
		case "equals":
			if model == rule.Value {
				return rule.Tokens
			}
		}
	}
	return def
}
