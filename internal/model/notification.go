package model

import (
	"encoding/json"
	"time"
)

// Notification is a per-user inbox row. Data is an opaque JSON payload the
// client interprets by Type (e.g. the love note ID for type "love_note").
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ActivityEvent is a couple-visible feed entry written alongside notable
// actions (love notes, challenges, milestones).
type ActivityEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	PartnerID string          `json:"partnerId,omitempty"`
	EventType string          `json:"eventType"`
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
