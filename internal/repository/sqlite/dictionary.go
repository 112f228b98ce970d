package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.DictionaryRepository = (*DB)(nil)

func (db *DB) CreateEntry(ctx context.Context, e *model.DictionaryEntry) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	now := time.Now()
	if e.UnlockedAt.IsZero() {
		e.UnlockedAt = now
	}
	e.CreatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO dictionary (id, user_id, word, translation, word_type, gender,
			language_code, unlocked_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Word, e.Translation, e.WordType, e.Gender,
		e.LanguageCode, e.UnlockedAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting dictionary entry: %w", err)
	}
	return nil
}

func (db *DB) ListEntries(ctx context.Context, userID, lang string, limit int) ([]model.DictionaryEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, word, translation, word_type, gender, language_code, unlocked_at, created_at
		 FROM dictionary
		 WHERE user_id = ? AND language_code = ?
		 ORDER BY unlocked_at DESC
		 LIMIT ?`,
		userID, lang, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing dictionary entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (db *DB) CountEntries(ctx context.Context, userID, lang string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dictionary WHERE user_id = ? AND language_code = ?`,
		userID, lang,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting dictionary entries: %w", err)
	}
	return n, nil
}

func (db *DB) GetEntriesByIDs(ctx context.Context, userID string, ids []string) ([]model.DictionaryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, word, translation, word_type, gender, language_code, unlocked_at, created_at
		 FROM dictionary
		 WHERE user_id = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting dictionary entries by id: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]model.DictionaryEntry, error) {
	var entries []model.DictionaryEntry
	for rows.Next() {
		var e model.DictionaryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Word, &e.Translation, &e.WordType,
			&e.Gender, &e.LanguageCode, &e.UnlockedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning dictionary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *DB) ListScores(ctx context.Context, userID, lang string) ([]model.WordScore, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, word_id, language_code, correct_attempts, total_attempts,
			correct_streak, learned_at, updated_at
		 FROM word_scores
		 WHERE user_id = ? AND language_code = ?`,
		userID, lang,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing word scores: %w", err)
	}
	defer rows.Close()

	var scores []model.WordScore
	for rows.Next() {
		var s model.WordScore
		var learned sql.NullTime
		if err := rows.Scan(&s.UserID, &s.WordID, &s.LanguageCode, &s.CorrectAttempts,
			&s.TotalAttempts, &s.CorrectStreak, &learned, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning word score: %w", err)
		}
		s.LearnedAt = timePtr(learned)
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (db *DB) GetScore(ctx context.Context, userID, wordID string) (*model.WordScore, error) {
	var s model.WordScore
	var learned sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, word_id, language_code, correct_attempts, total_attempts,
			correct_streak, learned_at, updated_at
		 FROM word_scores WHERE user_id = ? AND word_id = ?`,
		userID, wordID,
	).Scan(&s.UserID, &s.WordID, &s.LanguageCode, &s.CorrectAttempts,
		&s.TotalAttempts, &s.CorrectStreak, &learned, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // no score yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting word score: %w", err)
	}
	s.LearnedAt = timePtr(learned)
	return &s, nil
}

func (db *DB) UpsertScore(ctx context.Context, s *model.WordScore) error {
	s.UpdatedAt = time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO word_scores (user_id, word_id, language_code, correct_attempts,
			total_attempts, correct_streak, learned_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, word_id) DO UPDATE SET
			correct_attempts = excluded.correct_attempts,
			total_attempts = excluded.total_attempts,
			correct_streak = excluded.correct_streak,
			learned_at = excluded.learned_at,
			updated_at = excluded.updated_at`,
		s.UserID, s.WordID, s.LanguageCode, s.CorrectAttempts,
		s.TotalAttempts, s.CorrectStreak, timeArg(s.LearnedAt), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting word score: %w", err)
	}
	return nil
}
