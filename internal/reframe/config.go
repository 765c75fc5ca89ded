package reframe

import (
	"time"

	"github.com/Rrens/reframe-journal/internal/config"
)

// Dialogue constants
const (
	DefaultMaxTurns            = 12
	DefaultPacingIntervalTurns = 3
	DefaultModelTimeout        = 30 * time.Second
	DefaultMaxReframeLength    = 500
)

const (
	defaultCrisisMessage = "It sounds like you are carrying something really heavy right now, and you deserve support from a real person. " +
		"If you are in danger or thinking about ending your life, please call your local emergency number or a crisis line " +
		"(in the US you can call or text 988) right away. This journal can't give crisis help, but someone can talk with you now."

	defaultRepromptMessage = "Let's stay with your thought. Could you tell me, in your own words, how you are seeing the situation right now?"

	defaultFallbackMessage = "I'm having a little trouble responding right now. Take a breath, and when you're ready, " +
		"tell me a bit more about what you notice in this thought."

	defaultPacingPrompt = "We've spent a few exchanges on this thought. How would you like to continue?"

	defaultAffirmation = "You looked at a difficult thought with fresh eyes. That takes courage, and it gets easier every time you practice."

	defaultKeepReframingMessage = "Let's keep going. What else do you notice when you look at this thought again?"

	defaultVisualizationMessage = "Here is your reframed thought. Take a moment to picture it and let it settle."

	defaultDifferentThoughtMessage = "Nice work on this one. Start a new session whenever you want to work on a different thought."
)

// Config is the immutable dialogue configuration bound to a Controller at
// construction.
type Config struct {
	MaxTurns            int
	PacingIntervalTurns int
	ModelTimeout        time.Duration
	MaxReframeLength    int

	Persona                 string
	CrisisMessage           string
	RepromptMessage         string
	FallbackMessage         string
	PacingPrompt            string
	Affirmation             string
	KeepReframingMessage    string
	VisualizationMessage    string
	DifferentThoughtMessage string

	// Now is the clock used for turn timestamps. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the built-in dialogue configuration
func DefaultConfig() Config {
	return Config{
		MaxTurns:                DefaultMaxTurns,
		PacingIntervalTurns:     DefaultPacingIntervalTurns,
		ModelTimeout:            DefaultModelTimeout,
		MaxReframeLength:        DefaultMaxReframeLength,
		CrisisMessage:           defaultCrisisMessage,
		RepromptMessage:         defaultRepromptMessage,
		FallbackMessage:         defaultFallbackMessage,
		PacingPrompt:            defaultPacingPrompt,
		Affirmation:             defaultAffirmation,
		KeepReframingMessage:    defaultKeepReframingMessage,
		VisualizationMessage:    defaultVisualizationMessage,
		DifferentThoughtMessage: defaultDifferentThoughtMessage,
		Now:                     time.Now,
	}
}

// ConfigFrom overlays the application reframing settings on the defaults
func ConfigFrom(rc config.ReframingConfig) Config {
	cfg := DefaultConfig()
	if rc.MaxTurns > 0 {
		cfg.MaxTurns = rc.MaxTurns
	}
	if rc.PacingIntervalTurns > 0 {
		cfg.PacingIntervalTurns = rc.PacingIntervalTurns
	}
	if rc.ModelTimeout > 0 {
		cfg.ModelTimeout = rc.ModelTimeout
	}
	if rc.MaxReframeLength > 0 {
		cfg.MaxReframeLength = rc.MaxReframeLength
	}
	cfg.Persona = rc.Persona
	setIfNotEmpty(&cfg.CrisisMessage, rc.CrisisMessage)
	setIfNotEmpty(&cfg.RepromptMessage, rc.RepromptMessage)
	setIfNotEmpty(&cfg.FallbackMessage, rc.FallbackMessage)
	setIfNotEmpty(&cfg.PacingPrompt, rc.PacingPrompt)
	setIfNotEmpty(&cfg.Affirmation, rc.Affirmation)
	return cfg
}

// withDefaults fills zero fields so a partially built Config is usable
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxTurns <= 0 {
		c.MaxTurns = def.MaxTurns
	}
	if c.PacingIntervalTurns <= 0 {
		c.PacingIntervalTurns = def.PacingIntervalTurns
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = def.ModelTimeout
	}
	if c.MaxReframeLength <= 0 {
		c.MaxReframeLength = def.MaxReframeLength
	}
	setIfNotEmpty(&def.CrisisMessage, c.CrisisMessage)
	setIfNotEmpty(&def.RepromptMessage, c.RepromptMessage)
	setIfNotEmpty(&def.FallbackMessage, c.FallbackMessage)
	setIfNotEmpty(&def.PacingPrompt, c.PacingPrompt)
	setIfNotEmpty(&def.Affirmation, c.Affirmation)
	setIfNotEmpty(&def.KeepReframingMessage, c.KeepReframingMessage)
	setIfNotEmpty(&def.VisualizationMessage, c.VisualizationMessage)
	setIfNotEmpty(&def.DifferentThoughtMessage, c.DifferentThoughtMessage)
	c.CrisisMessage = def.CrisisMessage
	c.RepromptMessage = def.RepromptMessage
	c.FallbackMessage = def.FallbackMessage
	c.PacingPrompt = def.PacingPrompt
	c.Affirmation = def.Affirmation
	c.KeepReframingMessage = def.KeepReframingMessage
	c.VisualizationMessage = def.VisualizationMessage
	c.DifferentThoughtMessage = def.DifferentThoughtMessage
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
