package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rrens/reframe-journal/internal/llm"
)

// reframedPrefix lets a local user finish a session on demand
const reframedPrefix = "reframed:"

// Provider is an offline provider for development and tests. It echoes the
// user and only completes when the message starts with "reframed:".
type Provider struct{}

// NewProvider creates a mock provider
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return "mock"
}

func (p *Provider) AvailableModels() []string {
	return []string{"mock"}
}

func (p *Provider) DefaultModel() string {
	return "mock"
}

func (p *Provider) IsConfigured() bool {
	return true
}

func (p *Provider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.UserText)
	out := llm.Completion{
		Message:        fmt.Sprintf("I hear you. You said %q. What evidence do you notice for and against that?", text),
		NextSuggestion: "Name one fact that does not fit the thought.",
	}

	if strings.HasPrefix(strings.ToLower(text), reframedPrefix) {
		final := strings.TrimSpace(text[len(reframedPrefix):])
		if final != "" {
			out.Message = "That sounds like a kinder and more balanced way to see it."
			out.IsComplete = true
			out.FinalReframedThought = final
			out.NextSuggestion = ""
		}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mock completion: %w", err)
	}

	return &llm.Response{
		Content: string(body),
		Model:   "mock",
	}, nil
}
