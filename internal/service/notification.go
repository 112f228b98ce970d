package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// NotificationService reads the inbox and the couple's activity feed.
type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

func NewNotificationService(notifications repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, logger: logger}
}

// Inbox is the notifications list plus the unread badge count.
type Inbox struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) (*Inbox, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.notifications.ListNotifications(ctx, userID,
		repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	unread, err := s.notifications.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("counting unread: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &Inbox{Notifications: items, UnreadCount: unread}, nil
}

// MarkRead marks the given notifications read; an empty list marks all.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) error {
	if err := s.notifications.MarkNotificationsRead(ctx, userID, ids); err != nil {
		return fmt.Errorf("marking read: %w", err)
	}
	s.logger.Debug("notifications marked read",
		slog.String("user_id", userID),
		slog.Int("count", len(ids)),
	)
	return nil
}

// ActivityFeed returns the couple-visible event feed.
func (s *NotificationService) ActivityFeed(ctx context.Context, userID string, limit, offset int) ([]model.ActivityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.notifications.ListActivity(ctx, userID,
		repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	if events == nil {
		events = []model.ActivityEvent{}
	}
	return events, nil
}
