package chat

import "time"

// Session captures one conversation bound to a locally-hosted model.
type Session struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"modelId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
