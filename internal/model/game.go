package model

import "time"

// GameSession is one finished round of a practice game.
type GameSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	GameType     string    `json:"gameType"` // flashcards / quick_fire / quiz
	LanguageCode string    `json:"languageCode"`
	Correct      int       `json:"correct"`
	Total        int       `json:"total"`
	XPAwarded    int       `json:"xpAwarded"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GameAnswer is a single answer inside a session, kept for history and for
// updating the per-word score counters.
type GameAnswer struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	WordID    string    `json:"wordId"`
	Answer    string    `json:"answer"`
	Correct   bool      `json:"correct"`
	CreatedAt time.Time `json:"createdAt"`
}

// AchievementUnlock records that a user hit an achievement threshold.
// The rules live in the service layer; this row is the unlock itself.
type AchievementUnlock struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Key        string    `json:"key"` // e.g. "first_word", "streak_7"
	UnlockedAt time.Time `json:"unlockedAt"`
}

// UsageRecord is a daily counter of one metered feature. Quota checks sum
// these over the rolling 30-day window anchored on signup.
type UsageRecord struct {
	UserID    string `json:"userId"`
	UsageType string `json:"usageType"`
	UsageDate string `json:"usageDate"` // YYYY-MM-DD
	Count     int    `json:"count"`
}

// Invite is a partner-linking code generated by one half of the couple.
type Invite struct {
	Code      string     `json:"code"`
	InviterID string     `json:"inviterId"`
	Role      string     `json:"role"` // role the redeemer will take
	CreatedAt time.Time  `json:"createdAt"`
	UsedBy    string     `json:"usedBy,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}
