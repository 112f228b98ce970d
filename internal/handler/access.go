package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/service"
)

// AccessHandler serves trial, free-tier and promo endpoints.
type AccessHandler struct {
	access *service.AccessService
	logger *slog.Logger
}

func NewAccessHandler(access *service.AccessService, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{access: access, logger: logger}
}

// HandleTrialStatus returns the trial banner payload.
// GET /api/trial-status
func (h *AccessHandler) HandleTrialStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	status, err := h.access.TrialStatus(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleChooseFreeTier opts the user into the metered free tier.
// POST /api/choose-free-tier
func (h *AccessHandler) HandleChooseFreeTier(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	profile, err := h.access.ChooseFreeTier(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleRedeemPromo applies a creator promo code.
// POST /api/promo/redeem
func (h *AccessHandler) HandleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.access.RedeemPromo(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
