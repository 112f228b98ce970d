package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/service"
)

// LoveNoteHandler serves the couple's love note endpoints.
type LoveNoteHandler struct {
	notes  *service.LoveNoteService
	logger *slog.Logger
}

func NewLoveNoteHandler(notes *service.LoveNoteService, logger *slog.Logger) *LoveNoteHandler {
	return &LoveNoteHandler{notes: notes, logger: logger}
}

// HandleSend creates a love note for the linked partner. When the daily
// limit is hit, the 429 body carries the limit status so the client can
// show when sending reopens.
// POST /api/love-notes
func (h *LoveNoteHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Category      string `json:"category"`
		TemplateText  string `json:"templateText"`
		CustomMessage string `json:"customMessage"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	note, status, err := h.notes.Send(r.Context(), userID, req.Category, req.TemplateText, req.CustomMessage)
	if err != nil {
		if errors.Is(err, apperror.ErrRateLimited) && status != nil {
			writeJSON(w, http.StatusTooManyRequests, struct {
				ErrorResponse
				*service.LoveNoteLimitStatus
			}{
				ErrorResponse{Error: "rate_limited", Message: err.Error(), Code: "RATE_LIMITED"},
				status,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Note   *model.LoveNote              `json:"note"`
		Status *service.LoveNoteLimitStatus `json:"status"`
	}{note, status})
}

// HandleList returns the couple's notes, both directions, newest first.
// GET /api/love-notes
func (h *LoveNoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	notes, err := h.notes.List(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}
