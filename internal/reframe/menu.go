package reframe

import "github.com/Rrens/reframe-journal/internal/domain"

var (
	keepReframingItem = MenuItem{
		Option:      domain.PacingKeepReframing,
		Label:       "Keep Reframing",
		Description: "Stay with this thought a little longer.",
	}
	differentThoughtItem = MenuItem{
		Option:      domain.PacingDifferentThought,
		Label:       "Different Thought",
		Description: "Save your progress and pick another thought from your journal.",
	}
	visualizationItem = MenuItem{
		Option:      domain.PacingVisualization,
		Label:       "Visualization",
		Description: "Wrap up and turn your reframed thought into a card to look back on.",
	}
)

// menu builds the pacing menu. The "different thought" option is only
// offered when the user has another thought to work on.
func (c *Controller) menu(hasAlternativeThoughts bool) *PacingMenu {
	items := []MenuItem{keepReframingItem}
	if hasAlternativeThoughts {
		items = append(items, differentThoughtItem)
	}
	items = append(items, visualizationItem)

	return &PacingMenu{
		Prompt:  c.cfg.PacingPrompt,
		Options: items,
	}
}

func menuOptions(m *PacingMenu) []domain.PacingOption {
	opts := make([]domain.PacingOption, 0, len(m.Options))
	for _, item := range m.Options {
		opts = append(opts, item.Option)
	}
	return opts
}

func offered(opts []domain.PacingOption, option domain.PacingOption) bool {
	for _, o := range opts {
		if o == option {
			return true
		}
	}
	return false
}
