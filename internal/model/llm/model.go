package llm

// Model describes one locally-hosted model: identity, the chat template it
// speaks, and display metadata (file size, parameter count). Size and
// parameter figures are informational only and never enter the prompt
// pipeline.
type Model struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Template   string     `json:"template"`
	SizeBytes  int64      `json:"sizeBytes,omitempty"`
	ParamCount int64      `json:"paramCount,omitempty"`
	ContextLen int        `json:"contextLen,omitempty"`
	Defaults   GenOptions `json:"defaults,omitempty"`
}

// Seed provides the default on-device model catalog.
func Seed() []Model {
	temp := func(v float64) *float64 { return &v }
	return []Model{
		{
			ID:         "tinyllama-1.1b-chat",
			Name:       "TinyLlama 1.1B Chat",
			Template:   "default",
			SizeBytes:  668788096,
			ParamCount: 1100000000,
			ContextLen: 2048,
			Defaults:   GenOptions{Temperature: temp(0.7)},
		},
		{
			ID:         "phi-2",
			Name:       "Phi-2",
			Template:   "alpaca",
			SizeBytes:  1602465792,
			ParamCount: 2700000000,
			ContextLen: 2048,
		},
		{
			ID:         "mistral-7b-instruct",
			Name:       "Mistral 7B Instruct",
			Template:   "llama2",
			SizeBytes:  4368439296,
			ParamCount: 7240000000,
			ContextLen: 8192,
			Defaults:   GenOptions{Temperature: temp(0.6)},
		},
		{
			ID:         "openhermes-2.5-mistral",
			Name:       "OpenHermes 2.5 Mistral",
			Template:   "chatml",
			SizeBytes:  4368439296,
			ParamCount: 7240000000,
			ContextLen: 8192,
		},
		{
			ID:         "wizard-vicuna-7b",
			Name:       "Wizard Vicuna 7B Uncensored",
			Template:   "vicuna",
			SizeBytes:  3825804288,
			ParamCount: 6740000000,
			ContextLen: 4096,
		},
	}
}
