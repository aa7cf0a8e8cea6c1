package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parkpulse/parkpulse/internal/model"
)

// aiResponse is the JSON object expected inside a model response.
type aiResponse struct {
	Tier       int     `json:"tier"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Sources    string  `json:"sources"`
}

// parseAIResponse extracts the JSON object from a raw model response.
// Models routinely wrap JSON in markdown code fences or surround it with
// prose, so the parser strips fences and falls back to scanning for the
// outermost braces.
func parseAIResponse(raw string) (*Result, error) {
	payload := stripFences(raw)

	start := strings.Index(payload, "{")
	end := strings.LastIndex(payload, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	payload = payload[start : end+1]

	var resp aiResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}

	category := model.RideCategory(strings.ToUpper(strings.TrimSpace(resp.Category)))
	return &Result{
		Tier:       resp.Tier,
		Category:   category,
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
		Sources:    resp.Sources,
	}, nil
}

// stripFences removes a ```json ... ``` (or bare ```) wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line.
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
