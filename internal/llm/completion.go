package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rrens/reframe-journal/internal/domain"
)

// Completion is the structured result of one reframing turn
type Completion struct {
	Message              string `json:"message"`
	IsComplete           bool   `json:"isComplete"`
	FinalReframedThought string `json:"finalReframedThought,omitempty"`
	NextSuggestion       string `json:"nextSuggestion,omitempty"`
}

// ParseCompletion extracts the first JSON object carrying a non-empty
// "message" from raw model output. Code fences and surrounding prose are
// tolerated.
func ParseCompletion(content string) (*Completion, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty output", domain.ErrUnparseableCompletion)
	}

	for _, candidate := range findJSONObjects(content) {
		var c Completion
		if err := json.Unmarshal([]byte(candidate), &c); err != nil {
			continue
		}
		c.Message = strings.TrimSpace(c.Message)
		if c.Message == "" {
			continue
		}
		c.FinalReframedThought = strings.TrimSpace(c.FinalReframedThought)
		c.NextSuggestion = strings.TrimSpace(c.NextSuggestion)
		return &c, nil
	}

	return nil, fmt.Errorf("%w: no JSON object with a message", domain.ErrUnparseableCompletion)
}

// findJSONObjects returns every top-level {...} span in s, skipping braces
// that appear inside string literals.
func findJSONObjects(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}
