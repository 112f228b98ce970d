package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// XP awards.
const (
	XPPerCorrectAnswer = 10
	XPSessionBonus     = 25
)

// levelThresholds maps cumulative XP to level names, ascending.
var levelThresholds = []struct {
	XP    int
	Level string
}{
	{0, "Beginner 1"},
	{250, "Beginner 2"},
	{600, "Beginner 3"},
	{1200, "Intermediate 1"},
	{2500, "Intermediate 2"},
	{5000, "Intermediate 3"},
	{9000, "Advanced 1"},
	{15000, "Advanced 2"},
}

// LevelFor returns the level name for a cumulative XP total.
func LevelFor(xp int) string {
	level := levelThresholds[0].Level
	for _, t := range levelThresholds {
		if xp >= t.XP {
			level = t.Level
		}
	}
	return level
}

// Achievement is a threshold rule over progress counters.
type Achievement struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Threshold int    `json:"threshold"`
	Counter   string `json:"counter"` // words / sessions / xp
}

// AchievementRules is the full rule table, checked after every session.
var AchievementRules = []Achievement{
	{Key: "first_word", Title: "First word unlocked", Threshold: 1, Counter: "words"},
	{Key: "words_10", Title: "10 words unlocked", Threshold: 10, Counter: "words"},
	{Key: "words_50", Title: "50 words unlocked", Threshold: 50, Counter: "words"},
	{Key: "words_100", Title: "100 words unlocked", Threshold: 100, Counter: "words"},
	{Key: "first_game", Title: "First practice session", Threshold: 1, Counter: "sessions"},
	{Key: "games_10", Title: "10 practice sessions", Threshold: 10, Counter: "sessions"},
	{Key: "games_50", Title: "50 practice sessions", Threshold: 50, Counter: "sessions"},
	{Key: "xp_1000", Title: "1000 XP earned", Threshold: 1000, Counter: "xp"},
	{Key: "xp_5000", Title: "5000 XP earned", Threshold: 5000, Counter: "xp"},
}

// SessionResult is returned after recording a game session.
type SessionResult struct {
	Session     *model.GameSession        `json:"session"`
	XPAwarded   int                       `json:"xpAwarded"`
	TotalXP     int                       `json:"totalXp"`
	Level       string                    `json:"level"`
	LeveledUp   bool                      `json:"leveledUp"`
	NewUnlocks  []model.AchievementUnlock `json:"newUnlocks,omitempty"`
	WordsLearnt []string                  `json:"wordsLearnt,omitempty"`
}

// GameService records practice sessions and drives progress: word scores,
// XP, levels and achievements.
type GameService struct {
	games         repository.GameRepository
	dict          repository.DictionaryRepository
	profiles      repository.ProfileRepository
	notifications repository.NotificationRepository
	logger        *slog.Logger
	now           func() time.Time
}

func NewGameService(
	games repository.GameRepository,
	dict repository.DictionaryRepository,
	profiles repository.ProfileRepository,
	notifications repository.NotificationRepository,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		games:         games,
		dict:          dict,
		profiles:      profiles,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// RecordSession persists a finished session, updates per-word scores, awards
// XP and evaluates achievements. Score updates happen per answer; a word's
// learned_at is stamped the moment its streak reaches the mastered streak.
func (s *GameService) RecordSession(ctx context.Context, userID string, session model.GameSession, answers []model.GameAnswer) (*SessionResult, error) {
	if session.GameType == "" {
		return nil, apperror.ValidationFailed("gameType", "game type is required")
	}
	if session.Total <= 0 {
		return nil, apperror.ValidationFailed("total", "session must contain at least one question")
	}
	if session.Correct < 0 || session.Correct > session.Total {
		return nil, apperror.ValidationFailed("correct", "correct count out of range")
	}

	session.UserID = userID
	session.XPAwarded = session.Correct*XPPerCorrectAnswer + XPSessionBonus

	if err := s.games.CreateSession(ctx, &session, answers); err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}

	result := &SessionResult{Session: &session, XPAwarded: session.XPAwarded}

	// Word score updates are best-effort per word: one failed counter does
	// not invalidate the recorded session.
	for _, a := range answers {
		if a.WordID == "" {
			continue
		}
		learned, err := s.updateScore(ctx, userID, session.LanguageCode, a)
		if err != nil {
			s.logger.Warn("word score update failed",
				slog.String("word_id", a.WordID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if learned {
			result.WordsLearnt = append(result.WordsLearnt, a.WordID)
		}
	}

	p, err := s.AwardXP(ctx, userID, session.XPAwarded)
	if err != nil {
		return nil, err
	}
	result.TotalXP = p.XP
	result.Level = p.Level
	result.LeveledUp = LevelFor(p.XP-session.XPAwarded) != p.Level

	unlocks, err := s.checkAchievements(ctx, p)
	if err != nil {
		s.logger.Warn("achievement check failed", slog.String("error", err.Error()))
	} else {
		result.NewUnlocks = unlocks
	}

	return result, nil
}

// updateScore applies one answer to the word's counters. Returns true when
// this answer pushed the word over the mastered streak for the first time.
func (s *GameService) updateScore(ctx context.Context, userID, lang string, a model.GameAnswer) (bool, error) {
	score, err := s.dict.GetScore(ctx, userID, a.WordID)
	if err != nil {
		return false, err
	}
	if score == nil {
		score = &model.WordScore{UserID: userID, WordID: a.WordID, LanguageCode: lang}
	}

	score.TotalAttempts++
	if a.Correct {
		score.CorrectAttempts++
		score.CorrectStreak++
	} else {
		score.CorrectStreak = 0
	}

	learned := false
	if score.LearnedAt == nil && score.CorrectStreak >= masteredStreak {
		now := s.now()
		score.LearnedAt = &now
		learned = true
	}

	if err := s.dict.UpsertScore(ctx, score); err != nil {
		return false, err
	}
	return learned, nil
}

// AwardXP adds XP to the profile and recomputes the level.
func (s *GameService) AwardXP(ctx context.Context, userID string, amount int) (*model.Profile, error) {
	if amount < 0 {
		return nil, apperror.ValidationFailed("amount", "XP amount cannot be negative")
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.XP += amount
	p.Level = LevelFor(p.XP)
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("awarding xp: %w", err)
	}
	return p, nil
}

// checkAchievements evaluates every rule and unlocks the ones newly met.
// Unlock inserts are idempotent, so re-evaluating old rules is harmless.
func (s *GameService) checkAchievements(ctx context.Context, p *model.Profile) ([]model.AchievementUnlock, error) {
	existing, err := s.games.ListUnlocks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, u := range existing {
		have[u.Key] = true
	}

	words, err := s.dict.CountEntries(ctx, p.ID, p.ActiveLanguage)
	if err != nil {
		return nil, err
	}
	sessions, err := s.games.CountSessions(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	counters := map[string]int{"words": words, "sessions": sessions, "xp": p.XP}

	var unlocked []model.AchievementUnlock
	for _, rule := range AchievementRules {
		if have[rule.Key] || counters[rule.Counter] < rule.Threshold {
			continue
		}
		u := model.AchievementUnlock{UserID: p.ID, Key: rule.Key}
		if err := s.games.CreateUnlock(ctx, &u); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, u)

		n := &model.Notification{
			UserID:  p.ID,
			Type:    "achievement",
			Title:   "Achievement unlocked",
			Message: rule.Title,
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			s.logger.Warn("achievement notification failed",
				slog.String("key", rule.Key),
				slog.String("error", err.Error()),
			)
		}
	}
	return unlocked, nil
}

// ListHistory returns the user's recent sessions.
func (s *GameService) ListHistory(ctx context.Context, userID string, limit, offset int) ([]model.GameSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.games.ListSessions(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
}

// Achievements returns the full rule table annotated with unlock state.
type AchievementStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

func (s *GameService) Achievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	unlocks, err := s.games.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocks: %w", err)
	}
	byKey := make(map[string]model.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		byKey[u.Key] = u
	}

	out := make([]AchievementStatus, 0, len(AchievementRules))
	for _, rule := range AchievementRules {
		st := AchievementStatus{Achievement: rule}
		if u, ok := byKey[rule.Key]; ok {
			st.Unlocked = true
			t := u.UnlockedAt
			st.UnlockedAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}
