package model

import "time"

// Challenge request types and statuses.
const (
	RequestGeneral       = "general"
	RequestTopic         = "topic"
	RequestSpecificWords = "specific_words"

	RequestPending   = "pending"
	RequestFulfilled = "fulfilled"
	RequestDeclined  = "declined"
)

// ChallengeRequest is a student asking their tutor for a practice challenge.
// Only one pending request per student at a time.
type ChallengeRequest struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	TutorID     string    `json:"tutorId"`
	RequestType string    `json:"requestType"` // general / topic / specific_words
	Topic       string    `json:"topic,omitempty"`
	Message     string    `json:"message,omitempty"`
	WordIDs     []string  `json:"wordIds,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Challenge lifecycle states.
const (
	ChallengeAssigned  = "assigned"
	ChallengeStarted   = "started"
	ChallengeCompleted = "completed"
)

// ChallengeItem is one question inside a challenge.
type ChallengeItem struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Prompt      string `json:"prompt,omitempty"`
}

// Challenge is a tutor-assigned practice set the student plays through.
type Challenge struct {
	ID          string          `json:"id"`
	TutorID     string          `json:"tutorId"`
	StudentID   string          `json:"studentId"`
	RequestID   string          `json:"requestId,omitempty"`
	Title       string          `json:"title"`
	Type        string          `json:"type"` // quick_fire / quiz
	Items       []ChallengeItem `json:"items"`
	Status      string          `json:"status"`
	Score       int             `json:"score"`
	Total       int             `json:"total"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}
