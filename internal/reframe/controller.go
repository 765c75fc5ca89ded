package reframe

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/domain"
	"github.com/Rrens/reframe-journal/internal/llm"
)

// ModelAdapter turns a prompt bundle into a structured completion
type ModelAdapter interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// SafetyScreen is consulted before any user text reaches the model
type SafetyScreen interface {
	IsCrisis(text string) bool
	IsInjection(text string) bool
	Sanitize(text string) string
}

// ScreenVerdict explains why a message was answered without a model call
type ScreenVerdict string

const (
	ScreenNone      ScreenVerdict = ""
	ScreenCrisis    ScreenVerdict = "crisis"
	ScreenInjection ScreenVerdict = "injection"
	ScreenEmpty     ScreenVerdict = "empty"
)

// StartInput holds the parameters of a new session
type StartInput struct {
	UserID          uuid.UUID
	AnalysisID      *uuid.UUID
	SelectedThought string
	DistortionType  string
	Method          string
	Background      string
}

// MessageInput is one user message plus the caller-supplied menu context
type MessageInput struct {
	Text string
	// HasAlternativeThoughts is false when the user has no other thought to
	// move on to, which hides the "different thought" option.
	HasAlternativeThoughts bool
}

// MenuItem is one option of the pacing menu
type MenuItem struct {
	Option      domain.PacingOption `json:"option"`
	Label       string              `json:"label"`
	Description string              `json:"description"`
}

// PacingMenu is the templated checkpoint menu
type PacingMenu struct {
	Prompt  string     `json:"prompt"`
	Options []MenuItem `json:"options"`
}

// Reply describes the outcome of one controller call
type Reply struct {
	Message              string                    `json:"message"`
	IsComplete           bool                      `json:"is_complete"`
	FinalReframedThought string                    `json:"final_reframed_thought,omitempty"`
	ShowPacingMenu       bool                      `json:"show_pacing_menu"`
	PacingMenu           *PacingMenu               `json:"pacing_menu,omitempty"`
	ReachedTurnLimit     bool                      `json:"reached_turn_limit"`
	TurnCount            int                       `json:"turn_count"`
	MaxTurns             int                       `json:"max_turns"`
	Status               domain.SessionStatus      `json:"status"`
	Summary              *domain.CompletionSummary `json:"summary,omitempty"`
	NextSuggestion       string                    `json:"next_suggestion,omitempty"`
	StartNewSession      bool                      `json:"start_new_session,omitempty"`
	Screened             ScreenVerdict             `json:"screened,omitempty"`
	Degraded             bool                      `json:"degraded,omitempty"`

	// Mutated tells the caller whether the session must be persisted
	Mutated bool `json:"-"`
}

// Controller runs the guided reframing dialogue. It holds no per-session
// state; callers serialize calls for the same session.
type Controller struct {
	cfg    Config
	model  ModelAdapter
	screen SafetyScreen
}

// NewController creates a controller bound to cfg
func NewController(cfg Config, model ModelAdapter, screen SafetyScreen) *Controller {
	return &Controller{
		cfg:    cfg.withDefaults(),
		model:  model,
		screen: screen,
	}
}

// Config returns the controller's configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// StartSession validates the input and returns a new active session.
// No model call is made.
func (c *Controller) StartSession(in StartInput) (*domain.ReframingSession, error) {
	thought := strings.TrimSpace(in.SelectedThought)
	if thought == "" {
		return nil, domain.ErrEmptyThought
	}

	method, err := domain.ParseMethod(in.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, in.Method)
	}

	now := c.cfg.Now()
	return &domain.ReframingSession{
		ID:                  uuid.New(),
		UserID:              in.UserID,
		AnalysisID:          in.AnalysisID,
		SelectedThought:     thought,
		DistortionType:      strings.TrimSpace(in.DistortionType),
		Method:              method,
		Background:          strings.TrimSpace(in.Background),
		History:             []domain.Turn{},
		MaxTurns:            c.cfg.MaxTurns,
		PacingIntervalTurns: c.cfg.PacingIntervalTurns,
		Status:              domain.StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// ReceiveMessage processes one user message against the session, mutating it
// in place. Model failures degrade to the fallback message and never return
// an error.
func (c *Controller) ReceiveMessage(ctx context.Context, s *domain.ReframingSession, in MessageInput) (*Reply, error) {
	if s.IsCompleted() || s.TurnCount >= s.MaxUserTurns() {
		return nil, domain.ErrSessionClosed
	}

	// Both forms are screened: markup or entities can hide a phrase that
	// only appears once the text is sanitized.
	text := c.screen.Sanitize(in.Text)
	if c.screen.IsCrisis(in.Text) || c.screen.IsCrisis(text) {
		log.Warn().Str("session_id", s.ID.String()).Msg("crisis indicator detected")
		return c.screened(s, c.cfg.CrisisMessage, ScreenCrisis), nil
	}
	if c.screen.IsInjection(in.Text) || c.screen.IsInjection(text) {
		log.Warn().Str("session_id", s.ID.String()).Msg("prompt injection attempt detected")
		return c.screened(s, c.cfg.RepromptMessage, ScreenInjection), nil
	}
	if text == "" {
		return c.screened(s, c.cfg.RepromptMessage, ScreenEmpty), nil
	}
	if !s.Method.Valid() {
		return nil, domain.ErrInvalidMethod
	}

	// A new message while the menu is open means "keep reframing"
	if s.Status == domain.StatusAwaitingPacingChoice {
		s.Status = domain.StatusActive
		s.OfferedPacing = nil
	}

	req := llm.BuildPrompt(llm.PromptInput{
		Persona:         c.cfg.Persona,
		SelectedThought: s.SelectedThought,
		DistortionType:  s.DistortionType,
		Method:          s.Method,
		Background:      s.Background,
		History:         s.History,
		UserText:        text,
	})

	completion, err := c.complete(ctx, req)
	degraded := err != nil
	if degraded {
		log.Warn().
			Err(err).
			Str("session_id", s.ID.String()).
			Int("turn_count", s.TurnCount).
			Msg("model call failed, using fallback message")
	}

	assistantText := c.cfg.FallbackMessage
	if !degraded {
		assistantText = completion.Message
	}

	now := c.cfg.Now()
	s.History = append(s.History,
		domain.Turn{Role: domain.TurnRoleUser, Text: text, Timestamp: now},
		domain.Turn{Role: domain.TurnRoleAssistant, Text: assistantText, Timestamp: now},
	)
	s.TurnCount++
	s.UpdatedAt = now

	reply := &Reply{
		Message:  assistantText,
		MaxTurns: s.MaxTurns,
		Degraded: degraded,
		Mutated:  true,
	}

	modelFinal := ""
	if !degraded {
		reply.NextSuggestion = completion.NextSuggestion
		if completion.FinalReframedThought != "" {
			modelFinal = c.clamp(completion.FinalReframedThought)
			s.CandidateReframe = modelFinal
		}
	}

	switch {
	case !degraded && completion.IsComplete && modelFinal != "":
		c.finish(s, modelFinal, now, reply)
	case s.TurnCount >= s.MaxUserTurns():
		reply.ReachedTurnLimit = true
		c.finish(s, c.bestReframe(s), now, reply)
	case s.TurnCount%c.pacingInterval(s) == 0:
		menu := c.menu(in.HasAlternativeThoughts)
		s.Status = domain.StatusAwaitingPacingChoice
		s.OfferedPacing = menuOptions(menu)
		reply.ShowPacingMenu = true
		reply.PacingMenu = menu
	}

	reply.TurnCount = s.TurnCount
	reply.Status = s.Status

	log.Debug().
		Str("session_id", s.ID.String()).
		Int("turn_count", s.TurnCount).
		Str("status", string(s.Status)).
		Bool("degraded", degraded).
		Msg("reframing turn processed")

	return reply, nil
}

// ChoosePacing applies the user's pick from the pacing menu
func (c *Controller) ChoosePacing(s *domain.ReframingSession, option domain.PacingOption) (*Reply, error) {
	if s.IsCompleted() {
		return nil, domain.ErrSessionClosed
	}
	if s.Status != domain.StatusAwaitingPacingChoice {
		return nil, domain.ErrNotAwaitingPacing
	}
	if !offered(s.OfferedPacing, option) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPacingOption, option)
	}

	now := c.cfg.Now()
	reply := &Reply{
		TurnCount: s.TurnCount,
		MaxTurns:  s.MaxTurns,
		Mutated:   true,
	}

	switch option {
	case domain.PacingKeepReframing:
		s.Status = domain.StatusActive
		s.OfferedPacing = nil
		s.UpdatedAt = now
		reply.Message = c.cfg.KeepReframingMessage
	case domain.PacingVisualization:
		reply.Message = c.cfg.VisualizationMessage
		c.finish(s, c.bestReframe(s), now, reply)
	case domain.PacingDifferentThought:
		reply.Message = c.cfg.DifferentThoughtMessage
		reply.StartNewSession = true
		c.finish(s, c.bestReframe(s), now, reply)
	}

	reply.Status = s.Status
	return reply, nil
}

func (c *Controller) complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout)
	defer cancel()

	completion, err := c.model.Complete(callCtx, req)
	if err != nil {
		return nil, err
	}
	if completion == nil || strings.TrimSpace(completion.Message) == "" {
		return nil, domain.ErrUnparseableCompletion
	}
	return completion, nil
}

func (c *Controller) screened(s *domain.ReframingSession, message string, verdict ScreenVerdict) *Reply {
	return &Reply{
		Message:   message,
		TurnCount: s.TurnCount,
		MaxTurns:  s.MaxTurns,
		Status:    s.Status,
		Screened:  verdict,
	}
}

// finish freezes the session and attaches the completion summary
func (c *Controller) finish(s *domain.ReframingSession, final string, now time.Time, reply *Reply) {
	completedAt := now
	s.Status = domain.StatusCompleted
	s.FinalReframedThought = final
	s.CompletedAt = &completedAt
	s.OfferedPacing = nil
	s.UpdatedAt = now

	reply.IsComplete = true
	reply.FinalReframedThought = final
	reply.Summary = &domain.CompletionSummary{
		ID:                   uuid.New(),
		SessionID:            s.ID,
		UserID:               s.UserID,
		OriginalThought:      s.SelectedThought,
		DistortionType:       s.DistortionType,
		Method:               s.Method,
		FinalReframedThought: final,
		Affirmation:          c.cfg.Affirmation,
		CompletedAt:          completedAt,
	}
}

// bestReframe picks the final thought when the session ends without the
// model signaling completion.
func (c *Controller) bestReframe(s *domain.ReframingSession) string {
	if s.CandidateReframe != "" {
		return s.CandidateReframe
	}
	return c.synthesizeReframe(s)
}

// synthesizeReframe combines the original thought with the latest real
// assistant guidance. Fallback replies do not count as guidance.
func (c *Controller) synthesizeReframe(s *domain.ReframingSession) string {
	guidance := ""
	for i := len(s.History) - 1; i >= 0; i-- {
		t := s.History[i]
		if t.Role == domain.TurnRoleAssistant && t.Text != c.cfg.FallbackMessage {
			guidance = strings.TrimSpace(t.Text)
			break
		}
	}

	thought := strings.TrimRight(s.SelectedThought, " .!?")
	if guidance == "" {
		return c.clamp(fmt.Sprintf("I noticed the thought %q, and I can meet it with patience and kindness.", thought))
	}
	return c.clamp(fmt.Sprintf("I noticed the thought %q. Seen more gently: %s", thought, guidance))
}

func (c *Controller) clamp(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= c.cfg.MaxReframeLength {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:c.cfg.MaxReframeLength]))
}

func (c *Controller) pacingInterval(s *domain.ReframingSession) int {
	if s.PacingIntervalTurns > 0 {
		return s.PacingIntervalTurns
	}
	return c.cfg.PacingIntervalTurns
}
