package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/service"
)

// AuthHandler serves registration, login and Apple Sign-In endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

type authResponse struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
}

// HandleRegister creates an account.
// POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email          string `json:"email"`
		Password       string `json:"password"`
		FullName       string `json:"fullName"`
		NativeLanguage string `json:"nativeLanguage"`
		Role           string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, token, err := h.auth.Register(r.Context(),
		req.Email, req.Password, req.FullName, req.NativeLanguage, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, Profile: profile})
}

// HandleLogin verifies credentials and issues a token.
// POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, Profile: profile})
}

// HandleAppleToken stores the Apple refresh token for later account
// deletion. Always 200: native sign-in already succeeded on the device.
// POST /api/apple/token-exchange
func (h *AuthHandler) HandleAppleToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		AuthorizationCode string `json:"authorizationCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result := h.auth.StoreAppleToken(r.Context(), userID, req.AuthorizationCode)
	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the authenticated user's profile.
// GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleSwitchLanguage changes the actively learned language.
// POST /api/switch-language
func (h *AuthHandler) HandleSwitchLanguage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		LanguageCode string `json:"languageCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.auth.SwitchLanguage(r.Context(), userID, req.LanguageCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
