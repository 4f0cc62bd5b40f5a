package prompt

import (
	"fmt"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
)

// Engine renders conversations through the template bound to a model.
type Engine struct {
	templates *Registry
}

// NewEngine returns an Engine backed by the given registry.
func NewEngine(templates *Registry) *Engine {
	return &Engine{templates: templates}
}

// Render resolves the model's template and serializes turns through it.
// A model without a template, or a template name the registry does not
// know, fails with ErrTemplateResolution.
func (e *Engine) Render(turns []Turn, model llm.Model) (string, error) {
	if model.Template == "" {
		return "", fmt.Errorf("%w: model %q declares none", ErrTemplateResolution, model.ID)
	}
	tc, ok := e.templates.Lookup(model.Template)
	if !ok {
		return "", fmt.Errorf("%w: %q not registered", ErrTemplateResolution, model.Template)
	}
	return tc.Render(turns)
}

// TurnsFromMessages converts a newest-first transcript into chronological
// template turns. Only text messages carry prompt content; the viewer maps
// to the user role, assistantID to the assistant role, and any other
// author to the system role.
func TurnsFromMessages(messages []chat.Message, viewerID, assistantID string) []Turn {
	turns := make([]Turn, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Kind != chat.KindText {
			continue
		}
		role := RoleSystem
		switch m.Author.ID {
		case viewerID:
			role = RoleUser
		case assistantID:
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	return turns
}
