package model

import "time"

// Love note template categories the client may pick from.
var LoveNoteCategories = []string{"encouragement", "check_in", "celebration"}

// LoveNote is an in-app affection message between linked partners.
// Either a validated template or a sanitized custom message, never both empty.
type LoveNote struct {
	ID               string    `json:"id"`
	SenderID         string    `json:"senderId"`
	RecipientID      string    `json:"recipientId"`
	TemplateCategory string    `json:"templateCategory,omitempty"`
	TemplateText     string    `json:"templateText,omitempty"`
	CustomMessage    string    `json:"customMessage,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Text returns whichever message body the note carries.
func (n *LoveNote) Text() string {
	if n.TemplateText != "" {
		return n.TemplateText
	}
	return n.CustomMessage
}
