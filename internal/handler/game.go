package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/service"
)

// GameHandler serves practice sessions, XP and achievements.
type GameHandler struct {
	games  *service.GameService
	logger *slog.Logger
}

func NewGameHandler(games *service.GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// HandleRecordSession persists a finished game session and returns the
// progress it produced: XP, level and any new achievement unlocks.
// POST /api/game-sessions
func (h *GameHandler) HandleRecordSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		GameType     string             `json:"gameType"`
		LanguageCode string             `json:"languageCode"`
		Correct      int                `json:"correct"`
		Total        int                `json:"total"`
		Answers      []model.GameAnswer `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session := model.GameSession{
		GameType:     req.GameType,
		LanguageCode: req.LanguageCode,
		Correct:      req.Correct,
		Total:        req.Total,
	}
	result, err := h.games.RecordSession(r.Context(), userID, session, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleAwardXP adds XP outside a game session, e.g. for daily streaks.
// POST /api/xp
func (h *GameHandler) HandleAwardXP(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Amount int `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.games.AwardXP(r.Context(), userID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"xp":    profile.XP,
		"level": profile.Level,
	})
}

// HandleHistory returns the user's recent sessions.
// GET /api/game-history
func (h *GameHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	sessions, err := h.games.ListHistory(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// HandleAchievements returns the full rule table with unlock state.
// GET /api/achievements
func (h *GameHandler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	achievements, err := h.games.Achievements(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": achievements})
}
