package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a llama-server style runtime over HTTP. Generation goes
// through POST /completion; GET /props reports the loaded model.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a runtime client. The timeout bounds non-streaming
// completions only; streams live until the final chunk or context
// cancellation.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NPredict    *int     `json:"n_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
	CachePrompt bool     `json:"cache_prompt"`
}

type completionResponse struct {
	Content         string `json:"content"`
	Stop            bool   `json:"stop"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

type propsResponse struct {
	ModelPath                 string `json:"model_path"`
	TotalSlots                int    `json:"total_slots"`
	DefaultGenerationSettings struct {
		NCtx int `json:"n_ctx"`
	} `json:"default_generation_settings"`
}

// Complete runs a blocking generation and returns the full content.
func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.postCompletion(ctx, req, false)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed reading runtime response: %w", err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Completion{}, fmt.Errorf("failed to parse runtime response: %s", truncate(string(body), 400))
	}

	return Completion{
		Content:         parsed.Content,
		TokensPredicted: parsed.TokensPredicted,
		TokensEvaluated: parsed.TokensEvaluated,
	}, nil
}

// Stream starts a streaming generation. The caller owns the returned
// stream and must Close it.
func (c *Client) Stream(ctx context.Context, req Request) (Stream, error) {
	resp, err := c.postCompletion(ctx, req, true)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

// Info reports the model the runtime has loaded, for display surfaces.
func (c *Client) Info(ctx context.Context) (Props, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/props", nil)
	if err != nil {
		return Props{}, fmt.Errorf("failed to create props request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Props{}, fmt.Errorf("runtime props request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Props{}, fmt.Errorf("failed reading runtime props: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Props{}, fmt.Errorf("runtime props non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed propsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Props{}, fmt.Errorf("failed to parse runtime props: %s", truncate(string(body), 400))
	}

	return Props{
		ModelPath:   parsed.ModelPath,
		ContextSize: parsed.DefaultGenerationSettings.NCtx,
		SlotCount:   parsed.TotalSlots,
	}, nil
}

func (c *Client) postCompletion(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	reqBody := completionRequest{
		Prompt:      req.Prompt,
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
		TopK:        req.Options.TopK,
		NPredict:    req.Options.MaxTokens,
		Stop:        req.Options.Stop,
		Stream:      stream,
		CachePrompt: true,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runtime request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runtime request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("runtime non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}
	return resp, nil
}

// sseStream parses "data:" lines from a llama-server completion stream.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var parsed completionResponse
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			return Chunk{}, fmt.Errorf("failed to parse stream chunk: %s", truncate(payload, 400))
		}
		if parsed.Stop {
			s.done = true
		}
		return Chunk{Content: parsed.Content, Stop: parsed.Stop}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("failed reading completion stream: %w", err)
	}
	s.done = true
	return Chunk{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
