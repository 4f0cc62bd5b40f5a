package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pocketlm/core/internal/model/chat"
)

// Memory implements Store with mutex-guarded maps, the default backend
// when no database path is configured. Messages are held in append
// (chronological) order and flipped on read.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	order    []string
	messages map[string][]chat.Message
}

// NewMemory bootstraps the in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

func (m *Memory) CreateSession(_ context.Context, session chat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		m.order = append(m.order, session.ID)
	}
	m.sessions[session.ID] = session
	if m.messages[session.ID] == nil {
		m.messages[session.ID] = make([]chat.Message, 0, 16)
	}
	return nil
}

func (m *Memory) Session(_ context.Context, id string) (chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return chat.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return session, nil
}

func (m *Memory) Sessions(_ context.Context) ([]chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]chat.Session, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.sessions[m.order[i]])
	}
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *Memory) UpdateMessage(_ context.Context, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.messages[msg.SessionID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", msg.ID, ErrNotFound)
}

func (m *Memory) DeleteMessage(_ context.Context, sessionID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.messages[sessionID]
	for i := range list {
		if list[i].ID == messageID {
			m.messages[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
}

func (m *Memory) Messages(_ context.Context, sessionID string) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.messages[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	out := make([]chat.Message, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
