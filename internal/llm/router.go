package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Router manages LLM providers and routing
type Router struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
	mu              sync.RWMutex
}

// NewRouter creates a new LLM router
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider registers an LLM provider
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// SetDefaultModel overrides the model used by Complete. Empty means the
// provider's own default.
func (r *Router) SetDefaultModel(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = model
}

// GetProvider returns a provider by name
func (r *Router) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultProvider
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}

	if !p.IsConfigured() {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}

	return p, nil
}

// ListProviders returns list of configured provider names
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var providers []string
	for name, p := range r.providers {
		if p.IsConfigured() {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

// DefaultProvider returns the default provider name
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// ProviderInfo contains information about an LLM provider
type ProviderInfo struct {
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	Default    bool     `json:"default"`
	Configured bool     `json:"configured"`
}

// GetProvidersInfo returns information about all providers
func (r *Router) GetProvidersInfo() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		infos = append(infos, ProviderInfo{
			Name:       name,
			Models:     p.AvailableModels(),
			Default:    name == r.defaultProvider,
			Configured: p.IsConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Complete sends req to the default provider and parses the structured
// reframing completion out of the raw text.
func (r *Router) Complete(ctx context.Context, req Request) (*Completion, error) {
	provider, err := r.GetProvider("")
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	model := r.defaultModel
	r.mu.RUnlock()
	if model == "" {
		model = provider.DefaultModel()
	}

	resp, err := provider.Complete(ctx, req, model)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", provider.Name(), err)
	}

	log.Debug().
		Str("provider", provider.Name()).
		Str("model", resp.Model).
		Int("tokens_used", resp.TokensUsed).
		Int64("latency_ms", resp.LatencyMs).
		Msg("LLM response received")

	return ParseCompletion(resp.Content)
}
