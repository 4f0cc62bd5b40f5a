package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	chatService "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/service/runtime"
	"github.com/pocketlm/core/internal/telemetry"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Config tunes generation behavior for live connections.
type Config struct {
	Overrides llm.GenOptions
	Streaming bool
	Assistant chat.User
}

// Handler serves bidirectional chat over a websocket: text turns in,
// generation deltas and finals out.
type Handler struct {
	completer runtime.Completer
	engine    *prompt.Engine
	chatSvc   *chatService.Service
	cfg       Config
	upgrader  websocket.Upgrader
}

// New creates a live chat handler.
func New(completer runtime.Completer, engine *prompt.Engine, chatSvc *chatService.Service, cfg Config) *Handler {
	return &Handler{
		completer: completer,
		engine:    engine,
		chatSvc:   chatSvc,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the live chat route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live/{sessionID}", h.handleSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type textMessage struct {
	Text string `json:"text"`
}

// configMessage patches the connection's sampling state. Unset fields
// keep their current values.
type configMessage struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	StreamMode  *bool    `json:"streamMode,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	session    chat.Session
	model      llm.Model
	overrides  llm.GenOptions
	streamMode bool
}

func (h *Handler) newConnectionState(session chat.Session, model llm.Model) *connectionState {
	return &connectionState{
		session:    session,
		model:      model,
		overrides:  h.cfg.Overrides,
		streamMode: h.cfg.Streaming,
	}
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	model, err := h.chatSvc.Model(session)
	if err != nil {
		http.Error(w, "model not installed", http.StatusBadRequest)
		return
	}

	state := h.newConnectionState(session, model)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "session", sessionID, "err", err)
		return
	}
	defer conn.Close()

	slog.Info("live connection opened", "session", sessionID, "model", model.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, sessionID, map[string]any{
		"type":     "connected",
		"model":    model.ID,
		"template": model.Template,
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Warn("websocket read failed", "session", sessionID, "err", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(readTimeout))

			if msg.SessionID != "" && msg.SessionID != sessionID {
				h.sendError(conn, "session mismatch")
				continue
			}

			h.handleMessage(ctx, conn, state, &msg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, state, msg.Data)
	case "config":
		h.handleConfigMessage(conn, state, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var text textMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}
	if text.Text == "" {
		return
	}

	if err := h.processUserText(ctx, conn, state, text.Text); err != nil {
		h.sendError(conn, err.Error())
	}
}

func (h *Handler) processUserText(ctx context.Context, conn *websocket.Conn, state *connectionState, userText string) error {
	transcript, err := h.chatSvc.Transcript(ctx, state.session.ID)
	if err != nil {
		return fmt.Errorf("load transcript failed: %w", err)
	}

	saved, err := h.chatSvc.SaveMessage(ctx, chat.Message{
		SessionID: state.session.ID,
		Author:    chat.User{ID: state.session.OwnerID},
		Text:      userText,
	})
	if err != nil {
		return fmt.Errorf("save user message failed: %w", err)
	}
	transcript = append([]chat.Message{saved}, transcript...)

	h.sendInfo(conn, state.session.ID, map[string]any{
		"type": "user",
		"text": userText,
	})

	turns := prompt.TurnsFromMessages(transcript, state.session.OwnerID, h.cfg.Assistant.ID)
	rendered, err := h.engine.Render(turns, state.model)
	if err != nil {
		telemetry.PromptRenders.WithLabelValues(state.model.Template, "error").Inc()
		return fmt.Errorf("prompt render failed: %w", err)
	}
	telemetry.PromptRenders.WithLabelValues(state.model.Template, "ok").Inc()

	responseText, err := h.generate(ctx, conn, state, rendered)
	if err != nil {
		return err
	}

	if _, err := h.chatSvc.SaveMessage(ctx, chat.Message{
		SessionID: state.session.ID,
		Author:    h.cfg.Assistant,
		Text:      responseText,
	}); err != nil {
		slog.Error("save assistant message failed", "session", state.session.ID, "err", err)
	}

	return nil
}

func (h *Handler) generate(ctx context.Context, conn *websocket.Conn, state *connectionState, rendered string) (string, error) {
	req := runtime.Request{
		Prompt:  rendered,
		Options: llm.Merge(state.model.Defaults, state.overrides),
	}

	started := time.Now()
	defer func() {
		telemetry.CompletionDuration.Observe(time.Since(started).Seconds())
	}()

	if !state.streamMode {
		completion, err := h.completer.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("generation failed: %w", err)
		}
		h.sendInfo(conn, state.session.ID, map[string]any{
			"type":    "ai",
			"text":    completion.Content,
			"isFinal": true,
		})
		return completion.Content, nil
	}

	stream, err := h.completer.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("stream recv failed: %w", recvErr)
		}
		if chunk.Content == "" {
			continue
		}

		full.WriteString(chunk.Content)
		telemetry.StreamChunks.Inc()
		h.sendInfo(conn, state.session.ID, map[string]any{
			"type": "ai_delta",
			"text": chunk.Content,
		})
	}

	text := full.String()
	h.sendInfo(conn, state.session.ID, map[string]any{
		"type":    "ai",
		"text":    text,
		"isFinal": true,
	})
	return text, nil
}

func (h *Handler) handleConfigMessage(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg configMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload")
		return
	}

	h.applyConfig(state, cfg)

	h.sendInfo(conn, state.session.ID, map[string]any{
		"type":        "config",
		"streamMode":  state.streamMode,
		"temperature": state.overrides.Temperature,
		"topP":        state.overrides.TopP,
		"topK":        state.overrides.TopK,
		"maxTokens":   state.overrides.MaxTokens,
	})
}

func (h *Handler) applyConfig(state *connectionState, cfg configMessage) {
	state.overrides = llm.Merge(state.overrides, llm.GenOptions{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
	})
	if cfg.StreamMode != nil {
		state.streamMode = *cfg.StreamMode
	}
}

func (h *Handler) sendInfo(conn *websocket.Conn, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		slog.Error("websocket write failed", "session", sessionID, "err", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		slog.Error("websocket write failed", "err", err)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
