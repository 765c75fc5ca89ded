package llm

import (
	"fmt"
	"strings"

	"github.com/Rrens/reframe-journal/internal/domain"
)

// DefaultPersona is the tone directive used when no persona is configured
const DefaultPersona = `You are a warm, steady journaling companion trained in cognitive behavioral techniques.
You help the user look at one difficult thought from a kinder, more balanced angle.
You are not a therapist and you never diagnose. You speak plainly, briefly and without judgment.`

const outputContract = `Respond with ONLY a JSON object, no markdown, in this exact shape:
{"message": "<your reply to the user>", "isComplete": <true|false>, "finalReframedThought": "<the user's reframed thought, or empty>", "nextSuggestion": "<optional short hint for the next step, or empty>"}

Rules:
1. Keep "message" under 120 words and ask at most one question.
2. Set "isComplete" to true only when the user has clearly arrived at a reframed thought in their own words.
3. When "isComplete" is true, "finalReframedThought" must contain that thought written in first person.
4. You may propose a draft "finalReframedThought" earlier while "isComplete" is still false.`

const evidenceCheckGuidance = `Method: evidence check

Focus:
- Help the user list facts that support the thought and facts that do not.
- Separate what happened from how it was interpreted.
- Ask which conclusion the full evidence points to.`

const alternativePerspectivesGuidance = `Method: alternative perspectives

Focus:
- Invite the user to look at the situation through someone else's eyes: a friend, a mentor, a neutral observer.
- Explore two or three other plausible explanations.
- Ask which explanation feels both fair and believable.`

const balancedThinkingGuidance = `Method: balanced thinking

Focus:
- Acknowledge what is true or understandable in the thought.
- Look for the middle ground between the worst case and the best case.
- Help the user phrase a statement that holds both the difficulty and the nuance.`

const selfCompassionGuidance = `Method: self-compassion

Focus:
- Respond to the thought as a caring friend would.
- Normalize the feeling as part of shared human experience.
- Help the user speak to themselves with the same kindness they would offer someone they love.`

const actionOrientedGuidance = `Method: action oriented

Focus:
- Move from rumination toward what is within the user's control.
- Identify one small, concrete step the user could take soon.
- Help the user phrase the thought in a way that points toward that step.`

// MethodGuidance returns the guidance template for a method, or "" when the
// method is not one of the known values.
func MethodGuidance(m domain.Method) string {
	switch m {
	case domain.MethodEvidenceCheck:
		return evidenceCheckGuidance
	case domain.MethodAlternativePerspectives:
		return alternativePerspectivesGuidance
	case domain.MethodSelfCompassion:
		return selfCompassionGuidance
	case domain.MethodActionOriented:
		return actionOrientedGuidance
	case domain.MethodBalancedThinking:
		return balancedThinkingGuidance
	default:
		return ""
	}
}

// PromptInput holds everything needed to build one reframing prompt
type PromptInput struct {
	Persona         string
	SelectedThought string
	DistortionType  string
	Method          domain.Method
	Background      string
	History         []domain.Turn
	UserText        string
}

// BuildPrompt creates the prompt bundle for a reframing turn
func BuildPrompt(in PromptInput) Request {
	persona := strings.TrimSpace(in.Persona)
	if persona == "" {
		persona = DefaultPersona
	}

	var system strings.Builder
	system.WriteString(persona)
	system.WriteString("\n\n")
	if guidance := MethodGuidance(in.Method); guidance != "" {
		system.WriteString(guidance)
		system.WriteString("\n\n")
	}
	fmt.Fprintf(&system, "Thought being reframed: %q\n", in.SelectedThought)
	fmt.Fprintf(&system, "Cognitive distortion: %s\n", in.DistortionType)
	if bg := strings.TrimSpace(in.Background); bg != "" {
		fmt.Fprintf(&system, "\nWhat the user has shared about themselves:\n%s\n", bg)
	}
	system.WriteString("\n")
	system.WriteString(outputContract)

	history := make([]Message, 0, len(in.History))
	for _, t := range in.History {
		role := RoleUser
		if t.Role == domain.TurnRoleAssistant {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: t.Text})
	}

	return Request{
		System:   system.String(),
		History:  history,
		UserText: in.UserText,
	}
}

// FlattenPrompt renders a request as a single text prompt for
// completion-style APIs without chat roles.
func FlattenPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.System)
	if len(req.History) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		for _, m := range req.History {
			b.WriteString(m.Role)
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nNew user message:\n")
	b.WriteString(req.UserText)
	b.WriteString("\n\nJSON:")
	return b.String()
}
