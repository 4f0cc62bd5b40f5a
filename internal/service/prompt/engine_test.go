package prompt_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	prompt "github.com/pocketlm/core/internal/service/prompt"
)

func TestEngineRenderBindsModelTemplate(t *testing.T) {
	engine := prompt.NewEngine(prompt.NewRegistry(prompt.Builtins()...))
	turns := []prompt.Turn{
		{Role: prompt.RoleSystem, Content: "System prompt. "},
		{Role: prompt.RoleUser, Content: "Hi there!"},
		{Role: prompt.RoleAssistant, Content: "Nice to meet you!"},
		{Role: prompt.RoleUser, Content: "Can I ask a question?"},
	}

	got, err := engine.Render(turns, llm.Model{ID: "tinyllama-1.1b-chat", Template: "default"})
	if err != nil {
		t.Fatalf("Render err: %v", err)
	}
	want := "System prompt. </s><|prompt|>Hi there!</s><|answer|>Nice to meet you!</s><|prompt|>Can I ask a question?</s><|answer|>"
	if got != want {
		t.Fatalf("unexpected prompt:\n got %q\nwant %q", got, want)
	}
}

func TestEngineFailsWithoutResolvableTemplate(t *testing.T) {
	engine := prompt.NewEngine(prompt.NewRegistry(prompt.Builtins()...))

	got, err := engine.Render([]prompt.Turn{{Role: prompt.RoleUser, Content: "hi"}}, llm.Model{ID: "bare"})
	if !errors.Is(err, prompt.ErrTemplateResolution) {
		t.Fatalf("expected resolution error for template-less model, got %v", err)
	}
	if got != "" {
		t.Fatalf("failed render must not return content, got %q", got)
	}

	if _, err := engine.Render(nil, llm.Model{ID: "m", Template: "ghost"}); !errors.Is(err, prompt.ErrTemplateResolution) {
		t.Fatalf("expected resolution error for unregistered name, got %v", err)
	}
}

func TestTurnsFromMessages(t *testing.T) {
	ts := func(sec int) *time.Time {
		v := time.Date(2024, 3, 14, 10, 0, sec, 0, time.UTC)
		return &v
	}
	assistant := chat.User{ID: "assistant"}
	author := chat.User{ID: "viewer", FirstName: "Ada"}
	narrator := chat.User{ID: "narrator"}

	newestFirst := []chat.Message{
		{ID: "m4", Author: assistant, Kind: chat.KindText, Text: "Nice to meet you!", CreatedAt: ts(3)},
		{ID: "m3", Author: author, Kind: chat.KindImage, URI: "file:///x.png", CreatedAt: ts(2)},
		{ID: "m2", Author: author, Kind: chat.KindText, Text: "Hi there!", CreatedAt: ts(1)},
		{ID: "m1", Author: narrator, Kind: chat.KindText, Text: "System prompt. ", CreatedAt: ts(0)},
	}

	got := prompt.TurnsFromMessages(newestFirst, "viewer", "assistant")
	want := []prompt.Turn{
		{Role: prompt.RoleSystem, Content: "System prompt. "},
		{Role: prompt.RoleUser, Content: "Hi there!"},
		{Role: prompt.RoleAssistant, Content: "Nice to meet you!"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("turns mismatch:\n got %+v\nwant %+v", got, want)
	}
}
