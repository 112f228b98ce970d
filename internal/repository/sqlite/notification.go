package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.NotificationRepository = (*DB)(nil)

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	n.CreatedAt = time.Now()

	data := ""
	if len(n.Data) > 0 {
		data = string(n.Data)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, data, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting notification: %w", err)
	}
	return nil
}

func (db *DB) ListNotifications(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, type, title, message, data, read, created_at
		 FROM notifications
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		var data string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		if data != "" {
			n.Data = json.RawMessage(data)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting unread notifications: %w", err)
	}
	return n, nil
}

func (db *DB) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		// No explicit ids: mark everything read.
		_, err := db.conn.ExecContext(ctx,
			`UPDATE notifications SET read = 1 WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: marking notifications read: %w", err)
		}
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking notifications read: %w", err)
	}
	return nil
}

func (db *DB) CreateActivity(ctx context.Context, e *model.ActivityEvent) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	e.CreatedAt = time.Now()

	data := ""
	if len(e.Data) > 0 {
		data = string(e.Data)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activity_feed (id, user_id, partner_id, event_type, title, subtitle, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.PartnerID, e.EventType, e.Title, e.Subtitle, data, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting activity event: %w", err)
	}
	return nil
}

// ListActivity returns events written by either half of the couple: rows the
// user authored plus rows naming them as the partner.
func (db *DB) ListActivity(ctx context.Context, userID string, opts repository.ListOptions) ([]model.ActivityEvent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, partner_id, event_type, title, subtitle, data, created_at
		 FROM activity_feed
		 WHERE user_id = ? OR partner_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activity feed: %w", err)
	}
	defer rows.Close()

	var events []model.ActivityEvent
	for rows.Next() {
		var e model.ActivityEvent
		var data string
		if err := rows.Scan(&e.ID, &e.UserID, &e.PartnerID, &e.EventType,
			&e.Title, &e.Subtitle, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity event: %w", err)
		}
		if data != "" {
			e.Data = json.RawMessage(data)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
