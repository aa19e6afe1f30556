// Package cache is the fingerprint cache: a content-addressed map
// from translation requests to previously obtained translations. It is
// the only state shared across runs, and it is always advisory — a
// miss or an unusable store never blocks translation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the deterministic cache key of a translation
// request. The hash covers the normalized source text, the language
// pair and the model identifier, so identical text translated to a
// different language or with a different model never collides.
func Fingerprint(text, sourceLang, targetLang, model string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(sourceLang))
	h.Write([]byte{0})
	h.Write([]byte(targetLang))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}
