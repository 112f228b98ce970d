package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/service"
)

// ChallengeHandler serves the request/assign/play loop between the couple.
type ChallengeHandler struct {
	challenges *service.ChallengeService
	logger     *slog.Logger
}

func NewChallengeHandler(challenges *service.ChallengeService, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: logger}
}

// HandleCreateRequest files a student's challenge request with their tutor.
// POST /api/challenge-requests
func (h *ChallengeHandler) HandleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		RequestType string   `json:"requestType"`
		Topic       string   `json:"topic"`
		Message     string   `json:"message"`
		WordIDs     []string `json:"wordIds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.challenges.CreateRequest(r.Context(), userID,
		req.RequestType, req.Topic, req.Message, req.WordIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListRequests returns the tutor's incoming requests.
// GET /api/challenge-requests
func (h *ChallengeHandler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	requests, err := h.challenges.ListRequests(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// HandleDeclineRequest dismisses a request without building a challenge.
// POST /api/challenge-requests/{id}/decline
func (h *ChallengeHandler) HandleDeclineRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	if err := h.challenges.DeclineRequest(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"declined": true})
}

// HandleCreateChallenge assigns a challenge to the tutor's linked student.
// Empty items with a request ID trigger AI generation.
// POST /api/challenges
func (h *ChallengeHandler) HandleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Title     string                `json:"title"`
		Type      string                `json:"type"`
		RequestID string                `json:"requestId"`
		Items     []model.ChallengeItem `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.challenges.CreateChallenge(r.Context(), userID,
		req.Title, req.Type, req.RequestID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleListChallenges returns the student's challenges, newest first.
// GET /api/challenges
func (h *ChallengeHandler) HandleListChallenges(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	challenges, err := h.challenges.ListForStudent(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

// HandleStart marks a challenge as in progress.
// POST /api/challenges/{id}/start
func (h *ChallengeHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	c, err := h.challenges.Start(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleSubmit scores the student's answers and completes the challenge.
// POST /api/challenges/{id}/submit
func (h *ChallengeHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Answers      []string `json:"answers"`
		LanguageCode string   `json:"languageCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.challenges.Submit(r.Context(), userID, chi.URLParam(r, "id"),
		req.Answers, req.LanguageCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
