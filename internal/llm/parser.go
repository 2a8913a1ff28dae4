package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sevigo/merge-warden/internal/core"
)

// ParseVerdict extracts the verdict object out of a raw model reply. Models
// routinely wrap their JSON in prose or markdown fences, so the parser takes
// the substring from the first '{' to the last '}' and requires it to decode
// as a JSON object. The duration is stamped onto the result.
func ParseVerdict(raw string, duration float64) (*core.Verdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	jsonText := raw[start : end+1]

	// Decode into a map first: a top-level array or scalar that happens to
	// contain braces must be rejected, not coerced.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &probe); err != nil {
		return nil, fmt.Errorf("model response is not a JSON object: %w", err)
	}

	var verdict core.Verdict
	if err := json.Unmarshal([]byte(jsonText), &verdict); err != nil {
		return nil, fmt.Errorf("failed to decode verdict: %w", err)
	}

	verdict.Duration = duration
	return &verdict, nil
}
