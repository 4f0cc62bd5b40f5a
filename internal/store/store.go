package store

import (
	"context"
	"errors"

	"github.com/pocketlm/core/internal/model/chat"
)

// ErrNotFound marks a session or message absent from the store.
var ErrNotFound = errors.New("not found")

// Store persists sessions and their transcripts. Transcript reads come
// back newest-first, the canonical order the rest of the system expects.
type Store interface {
	CreateSession(ctx context.Context, session chat.Session) error
	Session(ctx context.Context, id string) (chat.Session, error)
	Sessions(ctx context.Context) ([]chat.Session, error)

	AppendMessage(ctx context.Context, msg chat.Message) error
	UpdateMessage(ctx context.Context, msg chat.Message) error
	DeleteMessage(ctx context.Context, sessionID, messageID string) error
	Messages(ctx context.Context, sessionID string) ([]chat.Message, error)

	Close() error
}
