package live

import (
	"testing"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
)

func f64(v float64) *float64 { return &v }
func iPtr(v int) *int        { return &v }
func boolPtr(v bool) *bool   { return &v }

func newTestHandler() *Handler {
	return New(nil, nil, nil, Config{
		Overrides: llm.GenOptions{Temperature: f64(0.7)},
		Streaming: true,
		Assistant: chat.User{ID: "assistant-1", FirstName: "Nova"},
	})
}

func TestNewConnectionStateSeedsDefaults(t *testing.T) {
	h := newTestHandler()
	state := h.newConnectionState(chat.Session{ID: "s1"}, llm.Model{ID: "m1"})

	if !state.streamMode {
		t.Error("expected streamMode to default to handler config")
	}
	if state.overrides.Temperature == nil || *state.overrides.Temperature != 0.7 {
		t.Errorf("expected temperature override 0.7, got %v", state.overrides.Temperature)
	}
	if state.overrides.TopK != nil {
		t.Errorf("expected topK unset, got %v", *state.overrides.TopK)
	}
}

func TestApplyConfigMergesOverrides(t *testing.T) {
	h := newTestHandler()
	state := h.newConnectionState(chat.Session{ID: "s1"}, llm.Model{ID: "m1"})

	h.applyConfig(state, configMessage{TopK: iPtr(40)})

	if state.overrides.Temperature == nil || *state.overrides.Temperature != 0.7 {
		t.Errorf("expected temperature to survive merge, got %v", state.overrides.Temperature)
	}
	if state.overrides.TopK == nil || *state.overrides.TopK != 40 {
		t.Errorf("expected topK 40, got %v", state.overrides.TopK)
	}
	if !state.streamMode {
		t.Error("expected streamMode untouched without a streamMode field")
	}

	h.applyConfig(state, configMessage{Temperature: f64(0.2), StreamMode: boolPtr(false)})

	if *state.overrides.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2 after second patch, got %v", *state.overrides.Temperature)
	}
	if *state.overrides.TopK != 40 {
		t.Errorf("expected topK to survive second patch, got %v", *state.overrides.TopK)
	}
	if state.streamMode {
		t.Error("expected streamMode false after patch")
	}
}

func TestApplyConfigEmptyPatchIsNoop(t *testing.T) {
	h := newTestHandler()
	state := h.newConnectionState(chat.Session{ID: "s1"}, llm.Model{ID: "m1"})

	h.applyConfig(state, configMessage{})

	if *state.overrides.Temperature != 0.7 {
		t.Errorf("expected temperature unchanged, got %v", *state.overrides.Temperature)
	}
	if !state.streamMode {
		t.Error("expected streamMode unchanged")
	}
}
