package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pocketlm/core/internal/model/chat"
	"github.com/pocketlm/core/internal/model/llm"
	"github.com/pocketlm/core/internal/store"
)

var (
	ErrModelRequired   = errors.New("model id is required")
	ErrSessionRequired = errors.New("session id is required")
	ErrAuthorRequired  = errors.New("message author is required")
)

// Service orchestrates sessions and transcripts on top of a Store. It
// owns identity minting and timestamp defaults; the store stays dumb.
type Service struct {
	store  store.Store
	models llm.Store
	now    func() time.Time
}

// NewService wires the chat service to its storage and model catalog.
func NewService(st store.Store, models llm.Store) *Service {
	return &Service{store: st, models: models, now: time.Now}
}

// CreateSession provisions a session bound to an installed model.
func (s *Service) CreateSession(ctx context.Context, modelID, ownerID, title string) (chat.Session, error) {
	if modelID == "" {
		return chat.Session{}, ErrModelRequired
	}
	if _, ok := s.models.FindByID(modelID); !ok {
		return chat.Session{}, fmt.Errorf("model %s: %w", modelID, store.ErrNotFound)
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		ModelID:   modelID,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.store.Session(ctx, sessionID)
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]chat.Session, error) {
	return s.store.Sessions(ctx)
}

// Model resolves the catalog entry a session is bound to.
func (s *Service) Model(session chat.Session) (llm.Model, error) {
	model, ok := s.models.FindByID(session.ModelID)
	if !ok {
		return llm.Model{}, fmt.Errorf("model %s: %w", session.ModelID, store.ErrNotFound)
	}
	return model, nil
}

// SaveMessage appends a message to the session transcript, minting its id
// and defaulting kind and timestamp when absent.
func (s *Service) SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.SessionID == "" {
		return chat.Message{}, ErrSessionRequired
	}
	if msg.Author.ID == "" {
		return chat.Message{}, ErrAuthorRequired
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Kind == "" {
		msg.Kind = chat.KindText
	}
	if msg.CreatedAt == nil {
		ts := s.now().UTC()
		msg.CreatedAt = &ts
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// EditMessage replaces a stored message with the update's canonical
// fields. The update may carry derived presentation fields from a
// rendered transcript; they are stripped before anything persists.
func (s *Service) EditMessage(ctx context.Context, sessionID, messageID string, update chat.DerivedMessage) (chat.Message, error) {
	msg := update.Strip()
	msg.ID = messageID
	msg.SessionID = sessionID
	if msg.Author.ID == "" {
		return chat.Message{}, ErrAuthorRequired
	}
	if msg.Kind == "" {
		msg.Kind = chat.KindText
	}

	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// DeleteMessage removes one message from a session transcript.
func (s *Service) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	return s.store.DeleteMessage(ctx, sessionID, messageID)
}

// Transcript returns stored messages for the session, newest first.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.store.Messages(ctx, sessionID)
}
