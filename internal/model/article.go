package model

import "time"

// Article is one generated blog article for a native/target language pair.
// Content is MDX produced offline; the API never renders it.
type Article struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	NativeLang  string    `json:"nativeLang"`
	TargetLang  string    `json:"targetLang"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
