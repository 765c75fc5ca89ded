package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxInputLength is the rune limit applied by Sanitize when none is configured
const DefaultMaxInputLength = 2000

// Screen checks journaling input before it reaches the model
type Screen struct {
	crisisPatterns    []*regexp.Regexp
	injectionPatterns []*regexp.Regexp
	policy            *bluemonday.Policy
	maxLength         int
}

// NewScreen creates a screen that clamps sanitized text to maxLength runes
func NewScreen(maxLength int) *Screen {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}

	crisis := []string{
		`(?i)\b(kill|hurt|harm|cut)\s+(myself|me)\b`,
		`(?i)\bwant(s|ed)?\s+to\s+die\b`,
		`(?i)\bwish\s+i\s+(was|were)\s+dead\b`,
		`(?i)\bend\s+(my|it)\s+(life|all)\b`,
		`(?i)\bsuicid(e|al)\b`,
		`(?i)\bself[\s-]?harm`,
		`(?i)\bbetter\s+off\s+dead\b`,
		`(?i)\bno\s+reason\s+to\s+(live|go\s+on)\b`,
		`(?i)\b(don'?t|do\s+not)\s+want\s+to\s+(live|be\s+alive)\b`,
		`(?i)\bhurt\s+(someone|somebody|them|him|her)\b`,
	}

	injection := []string{
		`(?i)\b(ignore|disregard|forget)\s+(all\s+|any\s+|the\s+)?(previous|prior|above|earlier|your)\s+(instructions|rules|prompts?)\b`,
		`(?i)\bsystem\s+prompt\b`,
		`(?i)\byou\s+are\s+now\s+(a|an|in)\b`,
		`(?i)\b(pretend|act)\s+(to\s+be|as\s+if\s+you\s+are|as)\s+(a|an)\s+(different|unfiltered|unrestricted)`,
		`(?i)\bjailbreak`,
		`(?i)\bdeveloper\s+mode\b`,
		`(?i)\b(reveal|show|print|repeat)\s+(me\s+)?(your|the)\s+(instructions|prompt|rules)\b`,
		`(?i)<\|?(system|im_start|im_end)\|?>`,
		`(?i)^\s*(system|assistant)\s*:`,
	}

	return &Screen{
		crisisPatterns:    compileAll(crisis),
		injectionPatterns: compileAll(injection),
		policy:            bluemonday.StrictPolicy(),
		maxLength:         maxLength,
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// IsCrisis reports whether text contains a crisis indicator, either as
// written or once markup and entities are removed.
func (s *Screen) IsCrisis(text string) bool {
	return matchAny(s.crisisPatterns, text) || matchAny(s.crisisPatterns, s.normalize(text))
}

// IsInjection reports whether text tries to override the assistant's
// instructions, either as written or once markup and entities are removed.
func (s *Screen) IsInjection(text string) bool {
	return matchAny(s.injectionPatterns, text) || matchAny(s.injectionPatterns, s.normalize(text))
}

// Sanitize strips markup and control characters, collapses whitespace and
// clamps the result to the configured rune length.
func (s *Screen) Sanitize(text string) string {
	out := s.normalize(text)
	if utf8.RuneCountInString(out) > s.maxLength {
		out = strings.TrimSpace(string([]rune(out)[:s.maxLength]))
	}
	return out
}

// normalize is Sanitize without the length clamp
func (s *Screen) normalize(text string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(text))

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := false
	for _, r := range stripped {
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
