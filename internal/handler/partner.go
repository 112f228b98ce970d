package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/service"
)

// PartnerHandler serves invite creation, redemption and delinking.
type PartnerHandler struct {
	partners *service.PartnerService
	logger   *slog.Logger
}

func NewPartnerHandler(partners *service.PartnerService, logger *slog.Logger) *PartnerHandler {
	return &PartnerHandler{partners: partners, logger: logger}
}

// HandleCreateInvite generates a single-use linking code.
// POST /api/invites
func (h *PartnerHandler) HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	invite, err := h.partners.CreateInvite(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

// HandleCompleteInvite redeems a code and links the couple.
// POST /api/invites/complete
func (h *PartnerHandler) HandleCompleteInvite(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.partners.CompleteInvite(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleDelink disconnects the couple and clears inherited access.
// POST /api/partner/delink
func (h *PartnerHandler) HandleDelink(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	if err := h.partners.Delink(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"delinked": true})
}
