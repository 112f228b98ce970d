package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.GameRepository = (*DB)(nil)

// CreateSession writes the session row and its answers in one transaction so
// a half-written session never shows up in history.
func (db *DB) CreateSession(ctx context.Context, s *model.GameSession, answers []model.GameAnswer) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	s.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning session tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_sessions (id, user_id, game_type, language_code, correct, total, xp_awarded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.GameType, s.LanguageCode, s.Correct, s.Total, s.XPAwarded, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting game session: %w", err)
	}

	for i := range answers {
		a := &answers[i]
		if a.ID == "" {
			a.ID = xid.New().String()
		}
		a.SessionID = s.ID
		a.CreatedAt = s.CreatedAt

		_, err = tx.ExecContext(ctx,
			`INSERT INTO game_answers (id, session_id, word_id, answer, correct, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.SessionID, a.WordID, a.Answer, a.Correct, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting game answer: %w", err)
		}
	}

	return tx.Commit()
}

func (db *DB) ListSessions(ctx context.Context, userID string, opts repository.ListOptions) ([]model.GameSession, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, game_type, language_code, correct, total, xp_awarded, created_at
		 FROM game_sessions
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing game sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.GameSession
	for rows.Next() {
		var s model.GameSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.GameType, &s.LanguageCode,
			&s.Correct, &s.Total, &s.XPAwarded, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning game session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (db *DB) CountSessions(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_sessions WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting game sessions: %w", err)
	}
	return n, nil
}

func (db *DB) ListUnlocks(ctx context.Context, userID string) ([]model.AchievementUnlock, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, key, unlocked_at
		 FROM achievement_unlocks
		 WHERE user_id = ?
		 ORDER BY unlocked_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing achievement unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []model.AchievementUnlock
	for rows.Next() {
		var u model.AchievementUnlock
		if err := rows.Scan(&u.ID, &u.UserID, &u.Key, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning achievement unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

// CreateUnlock is idempotent: the UNIQUE(user_id, key) constraint makes a
// repeat unlock a no-op rather than a duplicate row.
func (db *DB) CreateUnlock(ctx context.Context, u *model.AchievementUnlock) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	if u.UnlockedAt.IsZero() {
		u.UnlockedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO achievement_unlocks (id, user_id, key, unlocked_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, key) DO NOTHING`,
		u.ID, u.UserID, u.Key, u.UnlockedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting achievement unlock: %w", err)
	}
	return nil
}
