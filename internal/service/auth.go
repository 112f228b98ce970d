package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// AppleExchanger trades an Apple authorization code for a refresh token.
// Satisfied by *auth.AppleProvider; nil when Apple Sign-In is unconfigured.
type AppleExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// AppleExchangeResult is always a success from the client's point of view:
// sign-in already happened natively, we only report whether the refresh
// token got stored for later account deletion.
type AppleExchangeResult struct {
	Success bool   `json:"success"`
	Stored  bool   `json:"stored"`
	Reason  string `json:"reason,omitempty"`
}

// AuthService handles registration, login and Apple token storage.
type AuthService struct {
	profiles repository.ProfileRepository
	tokens   *auth.TokenService
	apple    AppleExchanger
	logger   *slog.Logger
}

func NewAuthService(
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	apple AppleExchanger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		profiles: profiles,
		tokens:   tokens,
		apple:    apple,
		logger:   logger,
	}
}

// Register creates a profile and returns it with a fresh access token.
func (s *AuthService) Register(ctx context.Context, email, password, fullName, nativeLanguage, role string) (*model.Profile, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	if role != model.RoleStudent && role != model.RoleTutor {
		return nil, "", apperror.ValidationFailed("role", "role must be student or tutor")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", apperror.ValidationFailed("password", err.Error())
	}

	if existing, err := s.profiles.GetProfileByEmail(ctx, email); err == nil && existing != nil {
		return nil, "", apperror.Conflict("account", email)
	} else if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, "", fmt.Errorf("checking existing account: %w", err)
	}

	if nativeLanguage == "" {
		nativeLanguage = "en"
	}

	p := &model.Profile{
		Email:          email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(fullName),
		Role:           role,
		NativeLanguage: nativeLanguage,
		Level:          "Beginner 1",
	}
	if err := s.profiles.CreateProfile(ctx, p); err != nil {
		s.logger.Error("failed to create profile",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("creating profile: %w", err)
	}

	token, err := s.tokens.Generate(p.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("profile registered",
		slog.String("user_id", p.ID),
		slog.String("role", p.Role),
	)
	return p, token, nil
}

// Login verifies credentials and issues an access token. Wrong email and
// wrong password produce the same error so the endpoint cannot be used to
// probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Profile, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := s.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, "", apperror.Unauthorized()
		}
		return nil, "", fmt.Errorf("looking up account: %w", err)
	}

	if !auth.CheckPassword(p.PasswordHash, password) {
		return nil, "", apperror.Unauthorized()
	}

	token, err := s.tokens.Generate(p.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("login", slog.String("user_id", p.ID))
	return p, token, nil
}

// StoreAppleToken exchanges the authorization code and stores the refresh
// token on the profile. Never fails the caller: sign-in already succeeded on
// the device, so the result only reports whether storage worked.
func (s *AuthService) StoreAppleToken(ctx context.Context, userID, authorizationCode string) *AppleExchangeResult {
	if s.apple == nil {
		return &AppleExchangeResult{Success: true, Stored: false, Reason: "apple sign-in not configured"}
	}
	if authorizationCode == "" {
		return &AppleExchangeResult{Success: true, Stored: false, Reason: "missing authorization code"}
	}

	refreshToken, err := s.apple.Exchange(ctx, authorizationCode)
	if err != nil {
		s.logger.Warn("apple token exchange failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return &AppleExchangeResult{Success: true, Stored: false, Reason: "token exchange failed"}
	}

	if err := s.profiles.SetAppleRefreshToken(ctx, userID, refreshToken); err != nil {
		s.logger.Warn("storing apple refresh token failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return &AppleExchangeResult{Success: true, Stored: false, Reason: "storage failed"}
	}

	return &AppleExchangeResult{Success: true, Stored: true}
}

// Profile returns the authenticated user's own profile.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// SwitchLanguage changes the language the student is actively learning.
func (s *AuthService) SwitchLanguage(ctx context.Context, userID, languageCode string) (*model.Profile, error) {
	languageCode = strings.ToLower(strings.TrimSpace(languageCode))
	if languageCode == "" {
		return nil, apperror.ValidationFailed("languageCode", "language code is required")
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.ActiveLanguage = languageCode
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("switching language: %w", err)
	}
	return p, nil
}
