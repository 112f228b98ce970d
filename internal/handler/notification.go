package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/service"
)

// NotificationHandler serves the inbox and the couple's activity feed.
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// HandleList returns notifications plus the unread badge count.
// GET /api/notifications
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	inbox, err := h.notifications.List(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

// HandleMarkRead marks the given notifications read; an empty list marks all.
// POST /api/notifications/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, req.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"marked": true})
}

// HandleActivityFeed returns the couple-visible event feed.
// GET /api/activity-feed
func (h *NotificationHandler) HandleActivityFeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	events, err := h.notifications.ActivityFeed(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
