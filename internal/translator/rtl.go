package translator

import (
	"strings"

	"golang.org/x/text/language"
)

// RTLMark is the right-to-left embedding character (U+202B) prefixed
// to translated lines of right-to-left target languages so players
// render them in the correct direction.
const RTLMark = "‫"

// rtlBases are the right-to-left target languages that receive the
// directional mark.
var rtlBases = map[string]bool{
	"ar": true,
	"fa": true,
	"he": true,
}

// IsRTLTarget reports whether the target language code is written
// right-to-left. Region or script subtags are ignored: "ar-EG" counts.
func IsRTLTarget(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return rtlBases[base.String()]
}

// applyRTLMark prefixes every non-empty line of translated text with
// the RTL mark. Lines already carrying the mark are left alone.
func applyRTLMark(translated string) string {
	lines := strings.Split(translated, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, RTLMark) {
			continue
		}
		lines[i] = RTLMark + line
	}
	return strings.Join(lines, "\n")
}
