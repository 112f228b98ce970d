package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.LoveNoteRepository = (*DB)(nil)

func (db *DB) CreateLoveNote(ctx context.Context, n *model.LoveNote) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	n.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO love_notes (id, sender_id, recipient_id, template_category,
			template_text, custom_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.SenderID, n.RecipientID, n.TemplateCategory,
		n.TemplateText, n.CustomMessage, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting love note: %w", err)
	}
	return nil
}

func (db *DB) CountLoveNotesSince(ctx context.Context, senderID string, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM love_notes WHERE sender_id = ? AND created_at >= ?`,
		senderID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting love notes: %w", err)
	}
	return n, nil
}

func (db *DB) ListLoveNotesForCouple(ctx context.Context, userID, partnerID string, opts repository.ListOptions) ([]model.LoveNote, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, template_category, template_text, custom_message, created_at
		 FROM love_notes
		 WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, partnerID, partnerID, userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing love notes: %w", err)
	}
	defer rows.Close()

	var notes []model.LoveNote
	for rows.Next() {
		var n model.LoveNote
		if err := rows.Scan(&n.ID, &n.SenderID, &n.RecipientID, &n.TemplateCategory,
			&n.TemplateText, &n.CustomMessage, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning love note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
