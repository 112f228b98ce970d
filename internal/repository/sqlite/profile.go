package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// Compile-time check that *DB satisfies the interface.
var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `id, email, password_hash, full_name, role,
	COALESCE(linked_user_id, ''), native_language, active_language, xp, level,
	subscription_status, subscription_plan, subscription_granted_by,
	promo_expires_at, trial_expires_at, free_tier_chosen_at,
	apple_refresh_token, is_admin, created_at, updated_at`

func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	var linked any
	if p.LinkedUserID != "" {
		linked = p.LinkedUserID
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, email, password_hash, full_name, role,
			linked_user_id, native_language, active_language, xp, level,
			subscription_status, subscription_plan, subscription_granted_by,
			promo_expires_at, trial_expires_at, free_tier_chosen_at,
			apple_refresh_token, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.PasswordHash, p.FullName, p.Role,
		linked, p.NativeLanguage, p.ActiveLanguage, p.XP, p.Level,
		p.SubscriptionStatus, p.SubscriptionPlan, p.SubscriptionGrantedBy,
		timeArg(p.PromoExpiresAt), timeArg(p.TrialExpiresAt), timeArg(p.FreeTierChosenAt),
		p.AppleRefreshToken, p.IsAdmin, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile: %w", err)
	}
	return nil
}

func (db *DB) scanProfile(row *sql.Row) (*model.Profile, error) {
	var p model.Profile
	var promo, trial, freeTier sql.NullTime
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Role,
		&p.LinkedUserID, &p.NativeLanguage, &p.ActiveLanguage, &p.XP, &p.Level,
		&p.SubscriptionStatus, &p.SubscriptionPlan, &p.SubscriptionGrantedBy,
		&promo, &trial, &freeTier,
		&p.AppleRefreshToken, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PromoExpiresAt = timePtr(promo)
	p.TrialExpiresAt = timePtr(trial)
	p.FreeTierChosenAt = timePtr(freeTier)
	return &p, nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := db.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting profile: %w", err)
	}
	return p, nil
}

func (db *DB) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = ?`, email)
	p, err := db.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting profile by email: %w", err)
	}
	return p, nil
}

func (db *DB) UpdateProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now()

	var linked any
	if p.LinkedUserID != "" {
		linked = p.LinkedUserID
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET email = ?, password_hash = ?, full_name = ?, role = ?,
			linked_user_id = ?, native_language = ?, active_language = ?, xp = ?, level = ?,
			subscription_status = ?, subscription_plan = ?, subscription_granted_by = ?,
			promo_expires_at = ?, trial_expires_at = ?, free_tier_chosen_at = ?,
			apple_refresh_token = ?, is_admin = ?, updated_at = ?
		 WHERE id = ?`,
		p.Email, p.PasswordHash, p.FullName, p.Role,
		linked, p.NativeLanguage, p.ActiveLanguage, p.XP, p.Level,
		p.SubscriptionStatus, p.SubscriptionPlan, p.SubscriptionGrantedBy,
		timeArg(p.PromoExpiresAt), timeArg(p.TrialExpiresAt), timeArg(p.FreeTierChosenAt),
		p.AppleRefreshToken, p.IsAdmin, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("profile", p.ID)
	}
	return nil
}

// ChooseFreeTier is the one write that must be race-safe: the WHERE clause
// guards against a concurrent request having set free_tier_chosen_at first.
func (db *DB) ChooseFreeTier(ctx context.Context, id string, chosenAt, trialExpiresAt time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles
		 SET free_tier_chosen_at = ?, trial_expires_at = ?, updated_at = ?
		 WHERE id = ? AND free_tier_chosen_at IS NULL`,
		chosenAt, trialExpiresAt, time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: choosing free tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: choosing free tier: %w", err)
	}
	return n > 0, nil
}

func (db *DB) SetAppleRefreshToken(ctx context.Context, id, token string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET apple_refresh_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing apple refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("profile", id)
	}
	return nil
}

func (db *DB) LinkProfiles(ctx context.Context, userID, partnerID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning link tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, pair := range [][2]string{{userID, partnerID}, {partnerID, userID}} {
		res, err := tx.ExecContext(ctx,
			`UPDATE profiles SET linked_user_id = ?, updated_at = ? WHERE id = ?`,
			pair[1], now, pair[0],
		)
		if err != nil {
			return fmt.Errorf("sqlite: linking profiles: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("profile", pair[0])
		}
	}

	return tx.Commit()
}

func (db *DB) DelinkProfiles(ctx context.Context, userID, partnerID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delink tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range []string{userID, partnerID} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET linked_user_id = NULL, subscription_granted_by = '', updated_at = ? WHERE id = ?`,
			now, id,
		); err != nil {
			return fmt.Errorf("sqlite: delinking profiles: %w", err)
		}
	}

	return tx.Commit()
}
