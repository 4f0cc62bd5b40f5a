package prompt

import (
	"sort"
	"sync"
)

// Registry resolves template names to configs. Reads return copies, so a
// looked-up config stays stable while the registry is updated.
type Registry struct {
	mu    sync.RWMutex
	items map[string]TemplateConfig
}

// NewRegistry returns a Registry preloaded with the supplied templates.
func NewRegistry(items ...TemplateConfig) *Registry {
	r := &Registry{items: make(map[string]TemplateConfig, len(items))}
	for _, tc := range items {
		r.items[tc.Name] = tc
	}
	return r
}

// Lookup resolves a template by name.
func (r *Registry) Lookup(name string) (TemplateConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.items[name]
	return tc, ok
}

// Put registers a template, replacing any existing one with the same name.
func (r *Registry) Put(tc TemplateConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[tc.Name] = tc
}

// Names lists registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins provides the template presets for the default model catalog.
// "default" is the house template used by the bundled starter model.
func Builtins() []TemplateConfig {
	return []TemplateConfig{
		{
			Name:                "default",
			PromptTag:           "<|prompt|>",
			AnswerTag:           "<|answer|>",
			EOSToken:            "</s>",
			AddEOS:              true,
			AddGenerationPrompt: true,
		},
		{
			Name:                "chatml",
			SystemPrefix:        "<|im_start|>system\n",
			PromptTag:           "<|im_start|>user\n",
			AnswerTag:           "<|im_start|>assistant\n",
			EOSToken:            "<|im_end|>\n",
			AddEOS:              true,
			AddGenerationPrompt: true,
		},
		{
			Name:                "llama2",
			SystemPrefix:        "<<SYS>>\n",
			SystemSuffix:        "\n<</SYS>>\n\n",
			PromptTag:           "[INST] ",
			AnswerTag:           " [/INST] ",
			BOSToken:            "<s>",
			AddBOS:              true,
			AddGenerationPrompt: true,
		},
		{
			Name:                "alpaca",
			SystemSuffix:        "\n",
			PromptTag:           "### Instruction:\n",
			AnswerTag:           "### Response:\n",
			EOSToken:            "\n\n",
			AddEOS:              true,
			AddGenerationPrompt: true,
		},
		{
			Name:                "vicuna",
			SystemSuffix:        "\n",
			PromptTag:           "\nUSER: ",
			AnswerTag:           "\nASSISTANT: ",
			AddGenerationPrompt: true,
		},
	}
}
