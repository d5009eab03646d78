package blueprint

import (
	"fmt"
	"strings"
)

// ConstraintText renders the blueprint as the prompt constraint block the
// generation model receives.
func ConstraintText(p *Profile, bp Blueprint) string {
	var b strings.Builder

	if qt, ok := questionTypeByID(p.QuestionTypes, bp.QuestionType); ok {
		fmt.Fprintf(&b, "Question style: %s\n", qt.Phrase)
		if qt.Guidance != "" {
			fmt.Fprintf(&b, "Guidance: %s\n", qt.Guidance)
		}
	}

	if bp.DifficultyLevel != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", p.Difficulty.DisplayName(bp.DifficultyLevel))
	}

	if bp.Domain != "" {
		name := bp.Domain
		for _, d := range p.Domains {
			if d.ID == bp.Domain {
				name = d.Name
				break
			}
		}
		fmt.Fprintf(&b, "Focus domain: %s\n", name)
	}

	for _, m := range p.ReasoningModes {
		if m.ID == bp.ReasoningMode {
			fmt.Fprintf(&b, "Reasoning approach: %s\n", m.Description)
			break
		}
	}

	if bp.Subtopic != "" {
		fmt.Fprintf(&b, "Subtopic emphasis: %s\n", bp.Subtopic)
	}

	return strings.TrimRight(b.String(), "\n")
}
