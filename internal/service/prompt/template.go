package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Role tags one conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance submitted to a template.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var (
	// ErrTemplateResolution marks a model whose chat template cannot be
	// resolved; callers must surface it instead of sending raw text to the
	// runtime.
	ErrTemplateResolution = errors.New("chat template not resolved")
	// ErrSystemTurnPosition marks a system turn anywhere but first.
	ErrSystemTurnPosition = errors.New("system turn outside first position")
	// ErrUnknownRole marks a turn whose role is not system/user/assistant.
	ErrUnknownRole = errors.New("unknown turn role")
)

// TemplateConfig describes how one model family concatenates turns into a
// flat prompt string: role delimiters, sequence markers and the trailing
// generation prompt.
type TemplateConfig struct {
	Name                string `json:"name" yaml:"name"`
	SystemPrefix        string `json:"systemPrefix,omitempty" yaml:"system_prefix,omitempty"`
	SystemSuffix        string `json:"systemSuffix,omitempty" yaml:"system_suffix,omitempty"`
	PromptTag           string `json:"promptTag" yaml:"prompt_tag"`
	AnswerTag           string `json:"answerTag" yaml:"answer_tag"`
	BOSToken            string `json:"bosToken,omitempty" yaml:"bos_token,omitempty"`
	EOSToken            string `json:"eosToken,omitempty" yaml:"eos_token,omitempty"`
	AddBOS              bool   `json:"addBos" yaml:"add_bos"`
	AddEOS              bool   `json:"addEos" yaml:"add_eos"`
	AddGenerationPrompt bool   `json:"addGenerationPrompt" yaml:"add_generation_prompt"`
}

// Render serializes turns into the prompt string this template's model
// expects. The beginning-of-sequence token is emitted once before the
// first turn; a system turn is legal only at position 0 and is written
// bare between its prefix and suffix; every later turn is introduced by
// the end-of-sequence token terminating its predecessor, then its role
// tag. With AddGenerationPrompt the string ends on an empty answer tag.
func (tc TemplateConfig) Render(turns []Turn) (string, error) {
	var b strings.Builder
	if tc.AddBOS {
		b.WriteString(tc.BOSToken)
	}
	for i, turn := range turns {
		switch turn.Role {
		case RoleSystem:
			if i != 0 {
				return "", fmt.Errorf("%w: index %d", ErrSystemTurnPosition, i)
			}
			b.WriteString(tc.SystemPrefix)
			b.WriteString(turn.Content)
			b.WriteString(tc.SystemSuffix)
		case RoleUser, RoleAssistant:
			if i > 0 {
				b.WriteString(tc.eos())
			}
			b.WriteString(tc.roleTag(turn.Role))
			b.WriteString(turn.Content)
		default:
			return "", fmt.Errorf("%w: %q at index %d", ErrUnknownRole, turn.Role, i)
		}
	}
	if tc.AddGenerationPrompt {
		if len(turns) > 0 {
			b.WriteString(tc.eos())
		}
		b.WriteString(tc.AnswerTag)
	}
	return b.String(), nil
}

func (tc TemplateConfig) eos() string {
	if tc.AddEOS {
		return tc.EOSToken
	}
	return ""
}

func (tc TemplateConfig) roleTag(r Role) string {
	if r == RoleAssistant {
		return tc.AnswerTag
	}
	return tc.PromptTag
}
