package llm

// GenOptions tunes sampling for one completion. Pointer fields distinguish
// "unset" from an explicit zero so layered settings merge per field:
// process defaults, then the model's suggested values, then the request.
type GenOptions struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty" yaml:"top_p,omitempty"`
	TopK        *int     `json:"topK,omitempty" yaml:"top_k,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty" yaml:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// Merge overlays o onto base field by field: set fields win, nil fields
// keep the base value. Neither input is mutated.
func Merge(base, o GenOptions) GenOptions {
	out := base
	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}
	if o.TopP != nil {
		out.TopP = o.TopP
	}
	if o.TopK != nil {
		out.TopK = o.TopK
	}
	if o.MaxTokens != nil {
		out.MaxTokens = o.MaxTokens
	}
	if o.Stop != nil {
		out.Stop = append([]string(nil), o.Stop...)
	}
	return out
}
