package vertex

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/llm"
	"google.golang.org/genai"
)

// Provider implements llm.Provider on Vertex AI through the unified genai SDK
type Provider struct {
	client       *genai.Client
	defaultModel string
}

// NewProvider creates a Vertex AI backed provider
func NewProvider(ctx context.Context, cfg config.VertexConfig) (*Provider, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex project and location must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &Provider{
		client:       client,
		defaultModel: model,
	}, nil
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "vertex"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has a live client
func (p *Provider) IsConfigured() bool {
	return p.client != nil
}

// Complete sends the reframing prompt through GenerateContent
func (p *Provider) Complete(ctx context.Context, req llm.Request, model string) (*llm.Response, error) {
	if model == "" {
		model = p.defaultModel
	}

	var contents []*genai.Content
	for _, m := range req.Messages() {
		var role genai.Role = genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temp := float32(0.7)
	topP := float32(0.9)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   int32(1024),
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	res, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("vertex returned empty text")
	}

	tokensUsed := 0
	if res.UsageMetadata != nil {
		tokensUsed = int(res.UsageMetadata.TotalTokenCount)
	}

	return &llm.Response{
		Content:    text,
		Model:      model,
		TokensUsed: tokensUsed,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
