package chat

import "time"

// Kind discriminates message payloads.
type Kind string

const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindCustom     Kind = "custom"
	KindDateHeader Kind = "dateHeader"
)

// Message is one immutable chat event. CreatedAt is nil for synthetic
// messages that never happened at a wall-clock instant; Text, URI and
// Metadata carry the kind-specific payload.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Author    User           `json:"author"`
	Kind      Kind           `json:"type"`
	Text      string         `json:"text,omitempty"`
	URI       string         `json:"uri,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *time.Time     `json:"createdAt,omitempty"`
}
