package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"subtrans/internal/subtitle"
)

// indexedLine is one cue in the batch wire payload. The index is the
// cue index from the document, so responses can be merged back even if
// the model reorders them.
type indexedLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// buildBatchPayload encodes the batch cues as an indexed JSON payload.
func buildBatchPayload(cues []subtitle.Cue) (string, error) {
	lines := make([]indexedLine, 0, len(cues))
	for _, cue := range cues {
		lines = append(lines, indexedLine{Index: cue.Index, Text: cue.Text})
	}
	payload, err := json.Marshal(struct {
		Lines []indexedLine `json:"lines"`
	}{Lines: lines})
	if err != nil {
		return "", fmt.Errorf("encode batch payload: %w", err)
	}
	return string(payload), nil
}

// parseBatchOutput decodes the model's reply into cueIndex → text.
// The primary shape is a JSON array of {"index","text"} objects, in
// any order. A bare JSON string array is accepted positionally as a
// fallback, as is plain newline-separated text, both matched against
// cues in batch order. Code fences around the JSON are tolerated.
func parseBatchOutput(content string, cues []subtitle.Cue) (map[int]string, error) {
	trimmed := stripCodeFence(strings.TrimSpace(content))

	var indexed []indexedLine
	if err := json.Unmarshal([]byte(trimmed), &indexed); err == nil && len(indexed) > 0 {
		return mergeIndexed(indexed, cues)
	}

	var wrapper struct {
		Lines []indexedLine `json:"lines"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err == nil && len(wrapper.Lines) > 0 {
		return mergeIndexed(wrapper.Lines, cues)
	}

	var plain []string
	if err := json.Unmarshal([]byte(trimmed), &plain); err == nil && len(plain) > 0 {
		return mergePositional(plain, cues)
	}

	// last resort: one translated line per cue
	split := strings.Split(trimmed, "\n")
	return mergePositional(split, cues)
}

func mergeIndexed(lines []indexedLine, cues []subtitle.Cue) (map[int]string, error) {
	valid := make(map[int]bool, len(cues))
	for _, cue := range cues {
		valid[cue.Index] = true
	}

	result := make(map[int]string, len(lines))
	for _, line := range lines {
		if !valid[line.Index] {
			return nil, fmt.Errorf("response references unknown cue index %d", line.Index)
		}
		result[line.Index] = line.Text
	}
	if len(result) != len(cues) {
		return nil, fmt.Errorf("response covers %d of %d cues", len(result), len(cues))
	}
	return result, nil
}

func mergePositional(lines []string, cues []subtitle.Cue) (map[int]string, error) {
	if len(lines) != len(cues) {
		return nil, fmt.Errorf("translation count mismatch: got %d lines for %d cues", len(lines), len(cues))
	}
	result := make(map[int]string, len(cues))
	for i, cue := range cues {
		result[cue.Index] = strings.TrimSpace(lines[i])
	}
	return result, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
