package llm

import "context"

// Message is one chat message sent to a provider
type Message struct {
	Role    string
	Content string
}

// Chat roles understood by every provider
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is the prompt bundle for one reframing turn
type Request struct {
	System   string
	History  []Message
	UserText string
}

// Messages returns the history followed by the new user message.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: RoleUser, Content: r.UserText})
}

// Response contains the raw provider output
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Complete sends the prompt bundle and returns the raw completion
	Complete(ctx context.Context, req Request, model string) (*Response, error)
}
