package model

import "time"

// DictionaryEntry is a learned word owned by a user + language pair.
type DictionaryEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Word         string    `json:"word"`
	Translation  string    `json:"translation"`
	WordType     string    `json:"wordType,omitempty"` // noun, verb, phrase, ...
	Gender       string    `json:"gender,omitempty"`   // grammatical gender where applicable
	LanguageCode string    `json:"languageCode"`
	UnlockedAt   time.Time `json:"unlockedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WordScore holds per-word attempt counters. The mastery tiers are derived
// from these counters by the vocab service, never stored.
type WordScore struct {
	UserID          string     `json:"userId"`
	WordID          string     `json:"wordId"`
	LanguageCode    string     `json:"languageCode"`
	CorrectAttempts int        `json:"correctAttempts"`
	TotalAttempts   int        `json:"totalAttempts"`
	CorrectStreak   int        `json:"correctStreak"`
	LearnedAt       *time.Time `json:"learnedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Mastery tiers computed from WordScore counters.
const (
	MasteryMastered   = "mastered"
	MasteryLearning   = "learning"
	MasteryStruggling = "struggling"
)
