package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk schema for user-provided template tweaks.
type overlayFile struct {
	Templates []templateSpec `yaml:"templates"`
}

// templateSpec mirrors TemplateConfig with optional fields, so an overlay
// can change a single value of a built-in without restating the rest.
type templateSpec struct {
	Name                string  `yaml:"name"`
	SystemPrefix        *string `yaml:"system_prefix"`
	SystemSuffix        *string `yaml:"system_suffix"`
	PromptTag           *string `yaml:"prompt_tag"`
	AnswerTag           *string `yaml:"answer_tag"`
	BOSToken            *string `yaml:"bos_token"`
	EOSToken            *string `yaml:"eos_token"`
	AddBOS              *bool   `yaml:"add_bos"`
	AddEOS              *bool   `yaml:"add_eos"`
	AddGenerationPrompt *bool   `yaml:"add_generation_prompt"`
}

// merge overlays the set fields of s onto base; nil fields keep the base
// value.
func (s templateSpec) merge(base TemplateConfig) TemplateConfig {
	out := base
	out.Name = s.Name
	if s.SystemPrefix != nil {
		out.SystemPrefix = *s.SystemPrefix
	}
	if s.SystemSuffix != nil {
		out.SystemSuffix = *s.SystemSuffix
	}
	if s.PromptTag != nil {
		out.PromptTag = *s.PromptTag
	}
	if s.AnswerTag != nil {
		out.AnswerTag = *s.AnswerTag
	}
	if s.BOSToken != nil {
		out.BOSToken = *s.BOSToken
	}
	if s.EOSToken != nil {
		out.EOSToken = *s.EOSToken
	}
	if s.AddBOS != nil {
		out.AddBOS = *s.AddBOS
	}
	if s.AddEOS != nil {
		out.AddEOS = *s.AddEOS
	}
	if s.AddGenerationPrompt != nil {
		out.AddGenerationPrompt = *s.AddGenerationPrompt
	}
	return out
}

// ApplyOverlay merges a YAML template file into the registry. Entries
// matching a registered name patch it field by field; unknown names
// register as new templates.
func ApplyOverlay(r *Registry, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template overlay: %w", err)
	}

	var file overlayFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse template overlay: %w", err)
	}

	for i, spec := range file.Templates {
		if spec.Name == "" {
			return fmt.Errorf("template overlay entry %d has no name", i)
		}
		base, _ := r.Lookup(spec.Name)
		r.Put(spec.merge(base))
	}
	return nil
}
