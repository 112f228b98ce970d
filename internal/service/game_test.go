package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
)

func newGameService(store *mockStore) *GameService {
	return NewGameService(store, store, store, store, testLogger())
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "Beginner 1", LevelFor(0))
	assert.Equal(t, "Beginner 1", LevelFor(249))
	assert.Equal(t, "Beginner 2", LevelFor(250))
	assert.Equal(t, "Intermediate 1", LevelFor(1500))
	assert.Equal(t, "Advanced 2", LevelFor(99999))
}

func TestRecordSession_AwardsXPAndUpdatesScores(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	words := seedWords(t, store, p.ID, 2)
	svc := newGameService(store)

	session := model.GameSession{GameType: "quick_fire", LanguageCode: "pl", Correct: 1, Total: 2}
	answers := []model.GameAnswer{
		{WordID: words[0].ID, Answer: "cat", Correct: true},
		{WordID: words[1].ID, Answer: "wrong", Correct: false},
	}

	result, err := svc.RecordSession(context.Background(), p.ID, session, answers)
	require.NoError(t, err)

	wantXP := 1*XPPerCorrectAnswer + XPSessionBonus
	assert.Equal(t, wantXP, result.XPAwarded)
	assert.Equal(t, wantXP, result.TotalXP)

	s0, err := store.GetScore(context.Background(), p.ID, words[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s0.CorrectStreak)
	assert.Equal(t, 1, s0.CorrectAttempts)
	assert.Nil(t, s0.LearnedAt)

	s1, err := store.GetScore(context.Background(), p.ID, words[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s1.CorrectStreak)
	assert.Equal(t, 1, s1.TotalAttempts)
}

func TestRecordSession_LearnedAtStampedAtStreakFive(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	words := seedWords(t, store, p.ID, 1)
	svc := newGameService(store)

	for i := 0; i < 5; i++ {
		_, err := svc.RecordSession(context.Background(), p.ID,
			model.GameSession{GameType: "flashcards", LanguageCode: "pl", Correct: 1, Total: 1},
			[]model.GameAnswer{{WordID: words[0].ID, Correct: true}})
		require.NoError(t, err)
	}

	score, err := store.GetScore(context.Background(), p.ID, words[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, score.CorrectStreak)
	require.NotNil(t, score.LearnedAt)
	assert.Equal(t, model.MasteryMastered, Classify(score))
}

func TestRecordSession_WrongAnswerResetsStreak(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	words := seedWords(t, store, p.ID, 1)
	svc := newGameService(store)

	play := func(correct bool) {
		n := 0
		if correct {
			n = 1
		}
		_, err := svc.RecordSession(context.Background(), p.ID,
			model.GameSession{GameType: "quiz", LanguageCode: "pl", Correct: n, Total: 1},
			[]model.GameAnswer{{WordID: words[0].ID, Correct: correct}})
		require.NoError(t, err)
	}

	play(true)
	play(true)
	play(false)

	score, err := store.GetScore(context.Background(), p.ID, words[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.CorrectStreak)
	assert.Equal(t, 2, score.CorrectAttempts)
	assert.Equal(t, 3, score.TotalAttempts)
}

func TestRecordSession_Validation(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	svc := newGameService(store)

	_, err := svc.RecordSession(context.Background(), p.ID,
		model.GameSession{GameType: "", Total: 1}, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.RecordSession(context.Background(), p.ID,
		model.GameSession{GameType: "quiz", Correct: 5, Total: 3}, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRecordSession_UnlocksAchievements(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	words := seedWords(t, store, p.ID, 1)
	svc := newGameService(store)

	result, err := svc.RecordSession(context.Background(), p.ID,
		model.GameSession{GameType: "quiz", LanguageCode: "pl", Correct: 1, Total: 1},
		[]model.GameAnswer{{WordID: words[0].ID, Correct: true}})
	require.NoError(t, err)

	keys := make([]string, 0, len(result.NewUnlocks))
	for _, u := range result.NewUnlocks {
		keys = append(keys, u.Key)
	}
	assert.Contains(t, keys, "first_word")
	assert.Contains(t, keys, "first_game")

	// Unlocks are not re-reported on the next session.
	result, err = svc.RecordSession(context.Background(), p.ID,
		model.GameSession{GameType: "quiz", LanguageCode: "pl", Correct: 1, Total: 1},
		[]model.GameAnswer{{WordID: words[0].ID, Correct: true}})
	require.NoError(t, err)
	for _, u := range result.NewUnlocks {
		assert.NotEqual(t, "first_word", u.Key)
		assert.NotEqual(t, "first_game", u.Key)
	}
}

func TestAchievements_StatusList(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	svc := newGameService(store)

	require.NoError(t, store.CreateUnlock(context.Background(),
		&model.AchievementUnlock{UserID: p.ID, Key: "first_word"}))

	statuses, err := svc.Achievements(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, statuses, len(AchievementRules))

	byKey := map[string]AchievementStatus{}
	for _, s := range statuses {
		byKey[s.Key] = s
	}
	assert.True(t, byKey["first_word"].Unlocked)
	assert.False(t, byKey["words_100"].Unlocked)
}

func TestAwardXP_LevelsUp(t *testing.T) {
	store := newMockStore()
	p := seedProfile(t, store, nil)
	svc := newGameService(store)

	got, err := svc.AwardXP(context.Background(), p.ID, 300)
	require.NoError(t, err)
	assert.Equal(t, 300, got.XP)
	assert.Equal(t, "Beginner 2", got.Level)

	_, err = svc.AwardXP(context.Background(), p.ID, -5)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
