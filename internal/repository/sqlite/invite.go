package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.InviteRepository = (*DB)(nil)

func (db *DB) CreateInvite(ctx context.Context, i *model.Invite) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO invites (code, inviter_id, role, created_at, used_by, used_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		i.Code, i.InviterID, i.Role, i.CreatedAt, i.UsedBy, timeArg(i.UsedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting invite: %w", err)
	}
	return nil
}

func (db *DB) GetInvite(ctx context.Context, code string) (*model.Invite, error) {
	var i model.Invite
	var usedAt sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT code, inviter_id, role, created_at, used_by, used_at
		 FROM invites WHERE code = ?`, code,
	).Scan(&i.Code, &i.InviterID, &i.Role, &i.CreatedAt, &i.UsedBy, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("invite", code)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: selecting invite: %w", err)
	}
	i.UsedAt = timePtr(usedAt)
	return &i, nil
}

// MarkInviteUsed claims the code. The used_by guard makes redemption
// single-use even under concurrent requests.
func (db *DB) MarkInviteUsed(ctx context.Context, code, usedBy string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE invites SET used_by = ?, used_at = ?
		 WHERE code = ? AND used_by = ''`,
		usedBy, at, code,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking invite used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.Conflict("invite", code)
	}
	return nil
}
