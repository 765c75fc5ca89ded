package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method is a cognitive reframing technique. The set is closed: values only
// come from the constants below or from ParseMethod.
type Method string

const (
	MethodEvidenceCheck           Method = "evidenceCheck"
	MethodAlternativePerspectives Method = "alternativePerspectives"
	MethodBalancedThinking        Method = "balancedThinking"
	MethodSelfCompassion          Method = "selfCompassion"
	MethodActionOriented          Method = "actionOriented"
)

// Methods lists every reframing method in menu order.
var Methods = []Method{
	MethodEvidenceCheck,
	MethodAlternativePerspectives,
	MethodBalancedThinking,
	MethodSelfCompassion,
	MethodActionOriented,
}

// ParseMethod resolves a method name. Case, dashes and underscores are
// ignored so "evidence-check", "evidence_check" and "evidenceCheck" match.
func ParseMethod(s string) (Method, error) {
	key := normalizeMethodKey(s)
	for _, m := range Methods {
		if normalizeMethodKey(string(m)) == key {
			return m, nil
		}
	}
	return "", ErrInvalidMethod
}

// Valid reports whether m is a member of the method enumeration.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

func normalizeMethodKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// SessionStatus is the state of a reframing session
type SessionStatus string

const (
	StatusActive               SessionStatus = "active"
	StatusAwaitingPacingChoice SessionStatus = "awaiting_pacing_choice"
	StatusCompleted            SessionStatus = "completed"
)

// TurnRole identifies who produced a turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is one entry of a reframing conversation
type Turn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PacingOption is one entry of the pacing menu offered at a checkpoint
type PacingOption string

const (
	PacingKeepReframing    PacingOption = "keep_reframing"
	PacingDifferentThought PacingOption = "different_thought"
	PacingVisualization    PacingOption = "visualization"
)

// ReframingSession is the conversation state for one (user, thought, method).
type ReframingSession struct {
	ID                   uuid.UUID      `json:"id"`
	UserID               uuid.UUID      `json:"user_id"`
	AnalysisID           *uuid.UUID     `json:"analysis_id,omitempty"`
	SelectedThought      string         `json:"selected_thought"`
	DistortionType       string         `json:"distortion_type"`
	Method               Method         `json:"method"`
	Background           string         `json:"background,omitempty"`
	History              []Turn         `json:"history"`
	TurnCount            int            `json:"turn_count"`
	MaxTurns             int            `json:"max_turns"`
	PacingIntervalTurns  int            `json:"pacing_interval_turns"`
	Status               SessionStatus  `json:"status"`
	CandidateReframe     string         `json:"candidate_reframe,omitempty"`
	OfferedPacing        []PacingOption `json:"offered_pacing,omitempty"`
	FinalReframedThought string         `json:"final_reframed_thought,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// MaxUserTurns is the number of user messages a session accepts.
func (s *ReframingSession) MaxUserTurns() int {
	return s.MaxTurns / 2
}

// IsCompleted reports whether the session is frozen.
func (s *ReframingSession) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// CompletionSummary is the card emitted when a session completes. It is
// appended to the user's session history collection by the caller.
type CompletionSummary struct {
	ID                   uuid.UUID `json:"id"`
	SessionID            uuid.UUID `json:"session_id"`
	UserID               uuid.UUID `json:"user_id"`
	OriginalThought      string    `json:"original_thought"`
	DistortionType       string    `json:"distortion_type"`
	Method               Method    `json:"method"`
	FinalReframedThought string    `json:"final_reframed_thought"`
	Affirmation          string    `json:"affirmation"`
	CompletedAt          time.Time `json:"completed_at"`
}

// StartSessionRequest is the body of a session start call
type StartSessionRequest struct {
	SelectedThought string     `json:"selected_thought" validate:"required,max=2000"`
	DistortionType  string     `json:"distortion_type" validate:"required,max=100"`
	Method          string     `json:"method" validate:"required"`
	AnalysisID      *uuid.UUID `json:"analysis_id,omitempty"`
	Background      string     `json:"background,omitempty" validate:"omitempty,max=4000"`
}

// SendMessageRequest is the body of a message call
type SendMessageRequest struct {
	Text                   string `json:"text" validate:"required,max=8000"`
	HasAlternativeThoughts bool   `json:"has_alternative_thoughts"`
}

// PacingChoiceRequest is the body of a pacing menu selection
type PacingChoiceRequest struct {
	Option string `json:"option" validate:"required,oneof=keep_reframing different_thought visualization"`
}

// ReframingRepository defines the interface for reframing session storage
type ReframingRepository interface {
	Create(ctx context.Context, session *ReframingSession) error
	Get(ctx context.Context, id uuid.UUID) (*ReframingSession, error)
	Update(ctx context.Context, session *ReframingSession) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ReframingSession, error)
}

// SummaryRepository defines the interface for completion summary storage
type SummaryRepository interface {
	Append(ctx context.Context, summary *CompletionSummary) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]CompletionSummary, error)
}
