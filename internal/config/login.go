package config

import (
	"strconv"
	"strings"
)

// UpdateFromLoginString applies a pipe-separated compact settings
// string to the config. The first token is the model name; the rest
// are order-independent:
//
//   - a URL token (http:// or https:// prefix) sets api_url
//   - the literal "nullkey" clears the API key, signalling that the
//     endpoint needs no authentication
//   - "delay=N" sets delay_ms
//   - "retryN" (or "retry" followed by digits anywhere) sets retry_mode
//   - "cache=auto|off" sets cache_mode; disable/disabled/chat map to off
//   - a bare integer >= 1000 is taken as a delay, otherwise a retry mode
//
// Unknown token shapes are ignored.
func (c *Config) UpdateFromLoginString(loginString string) {
	var tokens []string
	for _, tok := range strings.Split(loginString, "|") {
		if t := strings.TrimSpace(tok); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return
	}

	c.SelectedModel = tokens[0]
	for _, token := range tokens[1:] {
		lowered := strings.ToLower(token)
		switch {
		case strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://"):
			c.APIURL = token

		case lowered == "nullkey":
			c.APIKey = ""

		case strings.HasPrefix(lowered, "delay="):
			if n, err := strconv.Atoi(lowered[len("delay="):]); err == nil {
				c.DelayMs = n
			} else {
				c.DelayMs = DefaultDelayMs
			}

		case strings.HasPrefix(lowered, "retry"):
			if digits := digitsOf(lowered); digits != "" {
				if n, err := strconv.Atoi(digits); err == nil {
					c.RetryMode = n
				}
			}

		case strings.HasPrefix(lowered, "cache="):
			mode := strings.TrimSpace(lowered[len("cache="):])
			switch mode {
			case CacheModeAuto:
				c.CacheMode = CacheModeAuto
			case CacheModeOff, "disable", "disabled", "chat":
				c.CacheMode = CacheModeOff
			default:
				c.CacheMode = DefaultCacheMode
			}

		default:
			if n, err := strconv.Atoi(lowered); err == nil && n >= 0 {
				// values of 1000 or more read best as a delay in
				// milliseconds, smaller ones as a retry mode
				if n >= 1000 {
					c.DelayMs = n
				} else {
					c.RetryMode = n
				}
			}
		}
	}
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
