package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pocketlm/core/internal/model/llm"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestCompleteSendsOptionsAndParsesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["prompt"] != "<|prompt|>hi</s><|answer|>" {
			t.Errorf("unexpected prompt %q", body["prompt"])
		}
		if body["temperature"] != 0.8 {
			t.Errorf("unexpected temperature %v", body["temperature"])
		}
		if body["n_predict"] != float64(64) {
			t.Errorf("unexpected n_predict %v", body["n_predict"])
		}
		if stream, ok := body["stream"]; ok && stream != false {
			t.Errorf("expected non-streaming request, got stream=%v", stream)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":          "Hello!",
			"stop":             true,
			"tokens_predicted": 7,
			"tokens_evaluated": 42,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	result, err := client.Complete(context.Background(), Request{
		Prompt: "<|prompt|>hi</s><|answer|>",
		Options: llm.GenOptions{
			Temperature: f64(0.8),
			MaxTokens:   i(64),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.TokensPredicted != 7 {
		t.Errorf("expected 7 predicted tokens, got %d", result.TokensPredicted)
	}
	if result.TokensEvaluated != 42 {
		t.Errorf("expected 42 evaluated tokens, got %d", result.TokensEvaluated)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"loading model"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestStreamYieldsChunksUntilStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["stream"] != true {
			t.Errorf("expected streaming request, got stream=%v", body["stream"])
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"Hel\",\"stop\":false}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"content\":\"lo\",\"stop\":false}\n\n")
		fmt.Fprint(w, "data: {\"content\":\"\",\"stop\":true,\"tokens_predicted\":2}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	stream, err := client.Stream(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var got string
	var chunks int
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		got += chunk.Content
		chunks++
		if chunk.Stop && chunk.Content != "" {
			t.Errorf("final chunk carried content %q", chunk.Content)
		}
	}

	if got != "Hello" {
		t.Errorf("expected assembled content 'Hello', got %q", got)
	}
	if chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", chunks)
	}
}

func TestStreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slot busy"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	if _, err := client.Stream(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestInfoParsesProps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/props" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model_path":  "/models/tinyllama-1.1b-chat.Q4_K_M.gguf",
			"total_slots": 1,
			"default_generation_settings": map[string]any{
				"n_ctx": 2048,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	props, err := client.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if props.ModelPath != "/models/tinyllama-1.1b-chat.Q4_K_M.gguf" {
		t.Errorf("unexpected model path %q", props.ModelPath)
	}
	if props.ContextSize != 2048 {
		t.Errorf("expected context size 2048, got %d", props.ContextSize)
	}
	if props.SlotCount != 1 {
		t.Errorf("expected 1 slot, got %d", props.SlotCount)
	}
}
