package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// Love note limits.
const (
	LoveNoteDailyLimit    = 10
	LoveNoteMaxCustomSize = 200
)

// LoveNoteService sends affection messages between linked partners.
type LoveNoteService struct {
	notes         repository.LoveNoteRepository
	profiles      repository.ProfileRepository
	notifications repository.NotificationRepository
	logger        *slog.Logger
	now           func() time.Time
}

func NewLoveNoteService(
	notes repository.LoveNoteRepository,
	profiles repository.ProfileRepository,
	notifications repository.NotificationRepository,
	logger *slog.Logger,
) *LoveNoteService {
	return &LoveNoteService{
		notes:         notes,
		profiles:      profiles,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// LoveNoteLimitStatus rides along with 429 responses so the client can show
// when sending reopens.
type LoveNoteLimitStatus struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

func validCategory(c string) bool {
	for _, known := range model.LoveNoteCategories {
		if c == known {
			return true
		}
	}
	return false
}

// sanitizeMessage strips control characters and clamps length.
func sanitizeMessage(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len([]rune(out)) > LoveNoteMaxCustomSize {
		out = string([]rune(out)[:LoveNoteMaxCustomSize])
	}
	return out
}

// Send creates a love note for the linked partner. Exactly one of the
// template pair or customMessage must be provided. After the note is stored
// the recipient notification and the activity entry are written best-effort:
// their failure is logged, never surfaced.
func (s *LoveNoteService) Send(ctx context.Context, senderID, category, templateText, customMessage string) (*model.LoveNote, *LoveNoteLimitStatus, error) {
	sender, err := s.profiles.GetProfile(ctx, senderID)
	if err != nil {
		return nil, nil, err
	}
	if sender.LinkedUserID == "" {
		return nil, nil, apperror.Rejected("NO_PARTNER", "Link with your partner before sending love notes")
	}

	note := &model.LoveNote{
		SenderID:    senderID,
		RecipientID: sender.LinkedUserID,
	}
	switch {
	case templateText != "":
		if !validCategory(category) {
			return nil, nil, apperror.ValidationFailed("category", "unknown love note category")
		}
		note.TemplateCategory = category
		note.TemplateText = strings.TrimSpace(templateText)
	case customMessage != "":
		note.CustomMessage = sanitizeMessage(customMessage)
		if note.CustomMessage == "" {
			return nil, nil, apperror.ValidationFailed("customMessage", "message is empty after sanitization")
		}
	default:
		return nil, nil, apperror.ValidationFailed("message", "a template or a custom message is required")
	}

	// Daily limit counts notes sent since midnight UTC. The calendar
	// date must come from the UTC clock too, or a zoned server clock
	// shifts the window by up to a day.
	now := s.now()
	y, mo, d := now.UTC().Date()
	dayStart := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	sent, err := s.notes.CountLoveNotesSince(ctx, senderID, dayStart)
	if err != nil {
		return nil, nil, fmt.Errorf("counting today's notes: %w", err)
	}
	if sent >= LoveNoteDailyLimit {
		status := &LoveNoteLimitStatus{
			Remaining: 0,
			Limit:     LoveNoteDailyLimit,
			ResetAt:   dayStart.Add(24 * time.Hour),
		}
		return nil, status, apperror.RateLimited("Daily love note limit reached")
	}

	if err := s.notes.CreateLoveNote(ctx, note); err != nil {
		return nil, nil, fmt.Errorf("creating love note: %w", err)
	}

	// Best-effort follow-up writes, in order. No transaction: a lost
	// notification is preferable to a lost note.
	data, _ := json.Marshal(map[string]string{"loveNoteId": note.ID})
	notification := &model.Notification{
		UserID:  note.RecipientID,
		Type:    "love_note",
		Title:   "New love note",
		Message: note.Text(),
		Data:    data,
	}
	if err := s.notifications.CreateNotification(ctx, notification); err != nil {
		s.logger.Warn("love note notification failed",
			slog.String("note_id", note.ID),
			slog.String("error", err.Error()),
		)
	}

	activity := &model.ActivityEvent{
		UserID:    senderID,
		PartnerID: note.RecipientID,
		EventType: "love_note_sent",
		Title:     "Sent a love note",
		Data:      data,
	}
	if err := s.notifications.CreateActivity(ctx, activity); err != nil {
		s.logger.Warn("love note activity entry failed",
			slog.String("note_id", note.ID),
			slog.String("error", err.Error()),
		)
	}

	status := &LoveNoteLimitStatus{
		Remaining: LoveNoteDailyLimit - sent - 1,
		Limit:     LoveNoteDailyLimit,
		ResetAt:   dayStart.Add(24 * time.Hour),
	}
	return note, status, nil
}

// List returns the couple's notes, both directions, newest first.
func (s *LoveNoteService) List(ctx context.Context, userID string, limit, offset int) ([]model.LoveNote, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.LinkedUserID == "" {
		return []model.LoveNote{}, nil
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.notes.ListLoveNotesForCouple(ctx, userID, p.LinkedUserID,
		repository.ListOptions{Limit: limit, Offset: offset})
}
