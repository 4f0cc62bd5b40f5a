package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pocketlm/core/internal/analysis/history"
	"github.com/pocketlm/core/internal/model/chat"
	chatService "github.com/pocketlm/core/internal/service/chat"
	"github.com/pocketlm/core/internal/service/prompt"
	"github.com/pocketlm/core/internal/store"
	"github.com/pocketlm/core/internal/telemetry"
	"github.com/pocketlm/core/pkg/format"
	"github.com/pocketlm/core/pkg/utils"
)

// authorPalette is the number of avatar colors the clients cycle through.
const authorPalette = 8

// defaultOwner identifies the device user when a client never registers one.
const defaultOwner = "local-user"

// Handler serves session and transcript routes.
type Handler struct {
	chatSvc   *chatService.Service
	engine    *prompt.Engine
	history   history.Options
	assistant chat.User
}

// New creates the chat handler. hist carries the server-wide transcript
// rendering defaults; assistant is the author identity of generated
// messages.
func New(chatSvc *chatService.Service, engine *prompt.Engine, hist history.Options, assistant chat.User) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		engine:    engine,
		history:   hist,
		assistant: assistant,
	}
}

// RegisterRoutes mounts the session and transcript routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Get("/sessions", h.handleListSessions)
	r.Post("/messages", h.handleSaveMessage)
	r.Put("/messages/{messageID}", h.handleEditMessage)
	r.Delete("/sessions/{sessionID}/messages/{messageID}", h.handleDeleteMessage)
	r.Get("/history/{sessionID}", h.handleHistory)
	r.Get("/prompt/{sessionID}", h.handlePrompt)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ModelID string `json:"modelId"`
		OwnerID string `json:"ownerId"`
		Title   string `json:"title"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.OwnerID == "" {
		payload.OwnerID = defaultOwner
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.ModelID, payload.OwnerID, payload.Title)
	if err != nil {
		// A bad model reference is a payload problem, not a missing route.
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatSvc.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload chat.Message
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.chatSvc.SaveMessage(r.Context(), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var payload chat.DerivedMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	edited, err := h.chatSvc.EditMessage(r.Context(), payload.SessionID, chi.URLParam(r, "messageID"), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, edited)
}

func (h *Handler) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")

	if err := h.chatSvc.DeleteMessage(r.Context(), sessionID, messageID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// historyResponse is the rendered transcript: presentation messages
// newest first, gallery oldest first, plus avatar hints per author.
type historyResponse struct {
	Messages []chat.DerivedMessage `json:"messages"`
	Gallery  []chat.PreviewImage   `json:"gallery"`
	Authors  []authorView          `json:"authors"`
}

type authorView struct {
	chat.User
	Initials   string `json:"initials"`
	ColorIndex int    `json:"colorIndex"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	transcript, err := h.chatSvc.Transcript(r.Context(), session.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	opts := h.history
	if raw := r.URL.Query().Get("names"); raw != "" {
		if names, err := strconv.ParseBool(raw); err == nil {
			opts.ShowUserNames = names
		}
	}

	result, err := history.Derive(transcript, chat.User{ID: session.OwnerID}, opts)
	if err != nil {
		telemetry.HistoryDerivations.WithLabelValues("error").Inc()
		utils.RespondError(w, http.StatusInternalServerError, "transcript is malformed")
		return
	}
	telemetry.HistoryDerivations.WithLabelValues("ok").Inc()

	utils.RespondJSON(w, http.StatusOK, historyResponse{
		Messages: result.Messages,
		Gallery:  result.Gallery,
		Authors:  collectAuthors(transcript),
	})
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	model, err := h.chatSvc.Model(session)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	transcript, err := h.chatSvc.Transcript(r.Context(), session.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	turns := prompt.TurnsFromMessages(transcript, session.OwnerID, h.assistant.ID)
	rendered, err := h.engine.Render(turns, model)
	if err != nil {
		telemetry.PromptRenders.WithLabelValues(model.Template, "error").Inc()
		if errors.Is(err, prompt.ErrTemplateResolution) || errors.Is(err, prompt.ErrSystemTurnPosition) {
			utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.PromptRenders.WithLabelValues(model.Template, "ok").Inc()

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"prompt":   rendered,
		"template": model.Template,
		"turns":    len(turns),
	})
}

// collectAuthors lists each transcript author once, in order of first
// appearance, with stable avatar hints.
func collectAuthors(messages []chat.Message) []authorView {
	seen := make(map[string]struct{}, 4)
	authors := make([]authorView, 0, 4)
	for _, msg := range messages {
		if _, ok := seen[msg.Author.ID]; ok {
			continue
		}
		seen[msg.Author.ID] = struct{}{}
		authors = append(authors, authorView{
			User:       msg.Author,
			Initials:   format.Initials(msg.Author.DisplayName()),
			ColorIndex: format.ColorIndex(msg.Author.ID, authorPalette),
		})
	}
	return authors
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrModelRequired),
		errors.Is(err, chatService.ErrSessionRequired),
		errors.Is(err, chatService.ErrAuthorRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
