package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	chatservice "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/internal/store"
)

type fakeStream struct {
	chunks []runtime.Chunk
	pos    int
}

func (s *fakeStream) Recv() (runtime.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return runtime.Chunk{}, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeCompleter struct {
	lastPrompt string
	chunks     []runtime.Chunk
	completion runtime.Completion
}

func (f *fakeCompleter) Complete(ctx context.Context, req runtime.Request) (runtime.Completion, error) {
	f.lastPrompt = req.Prompt
	return f.completion, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, req runtime.Request) (runtime.Stream, error) {
	f.lastPrompt = req.Prompt
	return &fakeStream{chunks: f.chunks}, nil
}

func setup(t *testing.T, completer runtime.Completer, streaming bool) (*Handler, *chatservice.Service, chat.Session) {
	t.Helper()

	svc := chatservice.NewService(store.NewMemory(), llm.NewMemoryStore(llm.Seed()))
	engine := prompt.NewEngine(prompt.NewRegistry(prompt.Builtins()...))
	handler := New(completer, engine, svc, Config{
		Streaming: streaming,
		Assistant: chat.User{ID: "assistant-1", FirstName: "Nova"},
	})

	session, err := svc.CreateSession(context.Background(), "tinyllama-1.1b-chat", "u1", "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return handler, svc, session
}

func decodeFrames(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var frames []StreamResponse
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestHandleStreamRequestStreamsAndPersists(t *testing.T) {
	completer := &fakeCompleter{chunks: []runtime.Chunk{
		{Content: "Hel"},
		{Content: "lo"},
		{Stop: true},
	}}
	handler, svc, session := setup(t, completer, true)

	rec := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), rec, session.ID, "Hi there!"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type: got %q", got)
	}

	frames := decodeFrames(t, rec.Body.String())
	events := make([]string, 0, len(frames))
	for _, f := range frames {
		events = append(events, f.Event)
	}
	want := []string{"start", "delta", "delta", "message", "end"}
	if len(events) != len(want) {
		t.Fatalf("events: got %v want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d]: got %q want %q", i, events[i], want[i])
		}
	}
	if frames[3].Content != "Hello" {
		t.Fatalf("final message: got %q want Hello", frames[3].Content)
	}
	if !frames[4].Finished {
		t.Fatal("end frame must be marked finished")
	}

	wantPrompt := "<|prompt|>Hi there!</s><|answer|>"
	if completer.lastPrompt != wantPrompt {
		t.Fatalf("prompt:\ngot  %q\nwant %q", completer.lastPrompt, wantPrompt)
	}

	transcript, err := svc.Transcript(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("transcript length: got %d want 2", len(transcript))
	}
	if transcript[0].Author.ID != "assistant-1" || transcript[0].Text != "Hello" {
		t.Fatalf("unexpected assistant message %+v", transcript[0])
	}
	if transcript[1].Author.ID != "u1" || transcript[1].Text != "Hi there!" {
		t.Fatalf("unexpected user message %+v", transcript[1])
	}
}

func TestHandleStreamRequestSkipsDuplicateUserTurn(t *testing.T) {
	completer := &fakeCompleter{chunks: []runtime.Chunk{{Content: "Hey"}, {Stop: true}}}
	handler, svc, session := setup(t, completer, true)

	if _, err := svc.SaveMessage(context.Background(), chat.Message{
		SessionID: session.ID,
		Author:    chat.User{ID: "u1"},
		Text:      "Hi there!",
	}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), rec, session.ID, "Hi there!"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	transcript, err := svc.Transcript(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	// The pre-persisted user turn plus one assistant reply, no duplicate.
	if len(transcript) != 2 {
		t.Fatalf("transcript length: got %d want 2", len(transcript))
	}
}

func TestHandleStreamRequestNonStreaming(t *testing.T) {
	completer := &fakeCompleter{completion: runtime.Completion{Content: "All at once."}}
	handler, _, session := setup(t, completer, false)

	rec := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), rec, session.ID, "Hi!"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	frames := decodeFrames(t, rec.Body.String())
	for _, f := range frames {
		if f.Event == "delta" {
			t.Fatal("non-streaming mode must not emit deltas")
		}
	}
	var sawMessage bool
	for _, f := range frames {
		if f.Event == "message" && f.Content == "All at once." {
			sawMessage = true
		}
	}
	if !sawMessage {
		t.Fatalf("missing full message frame in %v", frames)
	}
}

func TestHandleStreamRequestUnknownSession(t *testing.T) {
	handler, _, _ := setup(t, &fakeCompleter{}, true)

	rec := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), rec, "missing", "Hi!"); err == nil {
		t.Fatal("expected error for unknown session")
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0].Event != "error" {
		t.Fatalf("expected a single error frame, got %v", frames)
	}
}

func TestHandleStreamRequestRenderFailure(t *testing.T) {
	svc := chatservice.NewService(store.NewMemory(), llm.NewMemoryStore(llm.Seed()))
	engine := prompt.NewEngine(prompt.NewRegistry())
	handler := New(&fakeCompleter{}, engine, svc, Config{
		Streaming: true,
		Assistant: chat.User{ID: "assistant-1"},
	})

	session, err := svc.CreateSession(context.Background(), "tinyllama-1.1b-chat", "u1", "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(context.Background(), rec, session.ID, "Hi!"); err == nil {
		t.Fatal("expected error when template cannot resolve")
	}

	frames := decodeFrames(t, rec.Body.String())
	last := frames[len(frames)-1]
	if last.Event != "error" || last.Error == "" {
		t.Fatalf("expected trailing error frame, got %+v", last)
	}
}
