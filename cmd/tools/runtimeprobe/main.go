package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pocketlm/core/internal/config"
	"github.com/pocketlm/core/internal/model/llm"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
)

// runtimeprobe exercises the inference runtime outside the API server:
// -mode=props prints what the runtime reports about its loaded model,
// -mode=complete pushes one prompt through and prints the result.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env file found, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Runtime.BaseURL == "" {
		log.Fatal("RUNTIME_BASE_URL is not configured")
	}

	mode := flag.String("mode", "", "probe mode: props or complete")
	text := flag.String("text", "", "user text to complete")
	modelID := flag.String("model", "", "catalog model whose template wraps the text; empty sends it raw")
	stream := flag.Bool("stream", false, "consume the completion as a stream")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")

	flag.Parse()

	client := runtime.NewClient(cfg.Runtime.BaseURL, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "props":
		runProps(ctx, client)
	case "complete":
		runComplete(ctx, client, cfg, *text, *modelID, *stream)
	default:
		flag.Usage()
		log.Fatal("specify -mode=props or -mode=complete")
	}
}

func runProps(ctx context.Context, client *runtime.Client) {
	props, err := client.Info(ctx)
	if err != nil {
		log.Fatalf("props request failed: %v", err)
	}

	log.Printf("runtime ready: model=%s contextSize=%d slots=%d", props.ModelPath, props.ContextSize, props.SlotCount)
}

func runComplete(ctx context.Context, client *runtime.Client, cfg *config.Config, text, modelID string, stream bool) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("complete mode needs -text")
	}

	rendered := text
	options := cfg.Sampling.Options()

	if modelID != "" {
		catalog := llm.NewMemoryStore(llm.Seed())
		model, ok := catalog.FindByID(modelID)
		if !ok {
			log.Fatalf("unknown model %q; pick one from the catalog", modelID)
		}

		engine := prompt.NewEngine(prompt.NewRegistry(prompt.Builtins()...))
		out, err := engine.Render([]prompt.Turn{{Role: prompt.RoleUser, Content: text}}, model)
		if err != nil {
			log.Fatalf("prompt render failed: %v", err)
		}
		rendered = out
		options = llm.Merge(model.Defaults, options)
	}

	req := runtime.Request{Prompt: rendered, Options: options}

	log.Printf("sending completion: stream=%v promptBytes=%d", stream, len(rendered))

	if !stream {
		completion, err := client.Complete(ctx, req)
		if err != nil {
			log.Fatalf("completion failed: %v", err)
		}
		log.Printf("completion done: evaluated=%d predicted=%d", completion.TokensEvaluated, completion.TokensPredicted)
		fmt.Println(completion.Content)
		return
	}

	s, err := client.Stream(ctx, req)
	if err != nil {
		log.Fatalf("stream open failed: %v", err)
	}
	defer s.Close()

	var full strings.Builder
	chunks := 0
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("stream recv failed: %v", err)
		}
		full.WriteString(chunk.Content)
		chunks++
	}

	log.Printf("stream done: chunks=%d", chunks)
	fmt.Println(full.String())
}
