// Package sqlite implements the repository interfaces on an embedded SQLite
// database through database/sql.
//
// The driver is modernc.org/sqlite, a pure-Go translation of SQLite: no CGo,
// no C toolchain, trivially cross-compiled. Tests open ":memory:" databases.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository. The server owns one DB and closes it
// during graceful shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and ":memory:" databases are
	// per-connection; a single pooled connection avoids both surprises.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight; foreign keys
	// are off by default in SQLite and must be enabled per connection.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates all tables. CREATE TABLE IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id                      TEXT PRIMARY KEY,
			email                   TEXT NOT NULL UNIQUE,
			password_hash           TEXT NOT NULL DEFAULT '',
			full_name               TEXT NOT NULL DEFAULT '',
			role                    TEXT NOT NULL DEFAULT 'student',
			linked_user_id          TEXT REFERENCES profiles(id),
			native_language         TEXT NOT NULL DEFAULT 'en',
			active_language         TEXT NOT NULL DEFAULT '',
			xp                      INTEGER NOT NULL DEFAULT 0,
			level                   TEXT NOT NULL DEFAULT 'Beginner 1',
			subscription_status     TEXT NOT NULL DEFAULT '',
			subscription_plan       TEXT NOT NULL DEFAULT '',
			subscription_granted_by TEXT NOT NULL DEFAULT '',
			promo_expires_at        DATETIME,
			trial_expires_at        DATETIME,
			free_tier_chosen_at     DATETIME,
			apple_refresh_token     TEXT NOT NULL DEFAULT '',
			is_admin                INTEGER NOT NULL DEFAULT 0,
			created_at              DATETIME NOT NULL,
			updated_at              DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dictionary (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES profiles(id),
			word          TEXT NOT NULL,
			translation   TEXT NOT NULL,
			word_type     TEXT NOT NULL DEFAULT '',
			gender        TEXT NOT NULL DEFAULT '',
			language_code TEXT NOT NULL,
			unlocked_at   DATETIME NOT NULL,
			created_at    DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dictionary_user_lang
			ON dictionary(user_id, language_code)`,
		`CREATE TABLE IF NOT EXISTS word_scores (
			user_id          TEXT NOT NULL REFERENCES profiles(id),
			word_id          TEXT NOT NULL REFERENCES dictionary(id),
			language_code    TEXT NOT NULL,
			correct_attempts INTEGER NOT NULL DEFAULT 0,
			total_attempts   INTEGER NOT NULL DEFAULT 0,
			correct_streak   INTEGER NOT NULL DEFAULT 0,
			learned_at       DATETIME,
			updated_at       DATETIME NOT NULL,
			PRIMARY KEY (user_id, word_id)
		)`,
		`CREATE TABLE IF NOT EXISTS love_notes (
			id                TEXT PRIMARY KEY,
			sender_id         TEXT NOT NULL REFERENCES profiles(id),
			recipient_id      TEXT NOT NULL REFERENCES profiles(id),
			template_category TEXT NOT NULL DEFAULT '',
			template_text     TEXT NOT NULL DEFAULT '',
			custom_message    TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_love_notes_sender_created
			ON love_notes(sender_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES profiles(id),
			type       TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			message    TEXT NOT NULL DEFAULT '',
			data       TEXT NOT NULL DEFAULT '',
			read       INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created
			ON notifications(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS activity_feed (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES profiles(id),
			partner_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			subtitle   TEXT NOT NULL DEFAULT '',
			data       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS challenge_requests (
			id           TEXT PRIMARY KEY,
			student_id   TEXT NOT NULL REFERENCES profiles(id),
			tutor_id     TEXT NOT NULL REFERENCES profiles(id),
			request_type TEXT NOT NULL,
			topic        TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			word_ids     TEXT NOT NULL DEFAULT '[]',
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id           TEXT PRIMARY KEY,
			tutor_id     TEXT NOT NULL REFERENCES profiles(id),
			student_id   TEXT NOT NULL REFERENCES profiles(id),
			request_id   TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL DEFAULT '',
			type         TEXT NOT NULL DEFAULT 'quiz',
			items        TEXT NOT NULL DEFAULT '[]',
			status       TEXT NOT NULL DEFAULT 'assigned',
			score        INTEGER NOT NULL DEFAULT 0,
			total        INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL,
			started_at   DATETIME,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES profiles(id),
			game_type     TEXT NOT NULL,
			language_code TEXT NOT NULL,
			correct       INTEGER NOT NULL DEFAULT 0,
			total         INTEGER NOT NULL DEFAULT 0,
			xp_awarded    INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_answers (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES game_sessions(id),
			word_id    TEXT NOT NULL DEFAULT '',
			answer     TEXT NOT NULL DEFAULT '',
			correct    INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS achievement_unlocks (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES profiles(id),
			key         TEXT NOT NULL,
			unlocked_at DATETIME NOT NULL,
			UNIQUE (user_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS usage_tracking (
			user_id    TEXT NOT NULL REFERENCES profiles(id),
			usage_type TEXT NOT NULL,
			usage_date TEXT NOT NULL,
			count      INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, usage_type, usage_date)
		)`,
		`CREATE TABLE IF NOT EXISTS invites (
			code       TEXT PRIMARY KEY,
			inviter_id TEXT NOT NULL REFERENCES profiles(id),
			role       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			used_by    TEXT NOT NULL DEFAULT '',
			used_at    DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS blog_articles (
			id          TEXT PRIMARY KEY,
			slug        TEXT NOT NULL,
			native_lang TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			updated_at  DATETIME NOT NULL,
			UNIQUE (native_lang, target_lang, slug)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}
