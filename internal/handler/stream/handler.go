package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	chatService "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/internal/telemetry"
	"github.com/pocketlm/core/pkg/utils"
)

// Config tunes generation behavior for the SSE surface.
type Config struct {
	// Overrides are server-wide sampling settings layered over the
	// per-model defaults.
	Overrides llm.GenOptions
	// Streaming false collapses the stream into a single message event.
	Streaming bool
	// Assistant is the author identity persisted on generated messages.
	Assistant chat.User
}

// Handler drives model generations over Server-Sent Events.
type Handler struct {
	completer runtime.Completer
	engine    *prompt.Engine
	chatSvc   *chatService.Service
	cfg       Config
}

// New creates a stream handler.
func New(completer runtime.Completer, engine *prompt.Engine, chatSvc *chatService.Service, cfg Config) *Handler {
	return &Handler{
		completer: completer,
		engine:    engine,
		chatSvc:   chatSvc,
		cfg:       cfg,
	}
}

// StreamResponse is one event frame on the wire.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one generation round for a session: persist
// the user turn, render the prompt, forward runtime output as it
// arrives, persist the assistant turn.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userText string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("session lookup failed: %v", err))
		return err
	}

	model, err := h.chatSvc.Model(session)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("model lookup failed: %v", err))
		return err
	}

	transcript, err := h.chatSvc.Transcript(ctx, session.ID)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("load transcript failed: %v", err))
		return err
	}

	// Persist the user turn unless the client already did via REST.
	if !hasMatchingUserMessage(transcript, session.OwnerID, userText) {
		saved, err := h.chatSvc.SaveMessage(ctx, chat.Message{
			SessionID: session.ID,
			Author:    chat.User{ID: session.OwnerID},
			Text:      userText,
		})
		if err != nil {
			slog.Error("save user message failed", "session", sessionID, "err", err)
		} else {
			transcript = append([]chat.Message{saved}, transcript...)
		}
	}

	h.send(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   model.Name,
	})

	turns := prompt.TurnsFromMessages(transcript, session.OwnerID, h.cfg.Assistant.ID)
	rendered, err := h.engine.Render(turns, model)
	if err != nil {
		telemetry.PromptRenders.WithLabelValues(model.Template, "error").Inc()
		h.sendError(w, flusher, fmt.Sprintf("prompt render failed: %v", err))
		return err
	}
	telemetry.PromptRenders.WithLabelValues(model.Template, "ok").Inc()

	req := runtime.Request{
		Prompt:  rendered,
		Options: llm.Merge(model.Defaults, h.cfg.Overrides),
	}

	started := time.Now()
	content, err := h.dispatch(ctx, w, flusher, sessionID, req)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("generation failed: %v", err))
		return err
	}
	telemetry.CompletionDuration.Observe(time.Since(started).Seconds())

	if _, err := h.chatSvc.SaveMessage(ctx, chat.Message{
		SessionID: session.ID,
		Author:    h.cfg.Assistant,
		Text:      content,
	}); err != nil {
		slog.Error("save assistant message failed", "session", sessionID, "err", err)
	}

	h.send(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	slog.Info("stream completed", "session", sessionID, "model", model.ID, "chars", len(content))
	return nil
}

func (h *Handler) dispatch(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, req runtime.Request) (string, error) {
	if h.cfg.Streaming {
		return h.streamCompletion(ctx, w, flusher, sessionID, req)
	}

	completion, err := h.completer.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   completion.Content,
	})
	return completion.Content, nil
}

func (h *Handler) streamCompletion(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, req runtime.Request) (string, error) {
	stream, err := h.completer.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		telemetry.StreamChunks.Inc()
		h.send(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   chunk.Content,
		})
	}

	content := full.String()
	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   content,
	})
	return content, nil
}

// hasMatchingUserMessage reports whether the newest transcript entry
// already carries this user turn; clients may persist it via REST
// before opening the stream.
func hasMatchingUserMessage(transcript []chat.Message, ownerID, text string) bool {
	if len(transcript) == 0 {
		return false
	}

	newest := transcript[0]
	if newest.Author.ID != ownerID {
		return false
	}
	if newest.Kind != chat.KindText {
		return false
	}
	return newest.Text == text
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, resp StreamResponse) {
	utils.SendSSEChunk(w, flusher, resp)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, msg string) {
	h.send(w, flusher, StreamResponse{Event: "error", Error: msg})
}
