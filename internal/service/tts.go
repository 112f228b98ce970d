package service

import (
	"context"
	"strings"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/tts"
)

// TTSService gates speech synthesis behind access and quota checks. Audio is
// proxied straight through; nothing is stored.
type TTSService struct {
	client tts.Client
	access *AccessService
}

func NewTTSService(client tts.Client, access *AccessService) *TTSService {
	return &TTSService{client: client, access: access}
}

// Speak synthesizes the text and returns audio bytes with their content type.
func (s *TTSService) Speak(ctx context.Context, userID, text, languageCode string) ([]byte, string, error) {
	if s.client == nil {
		return nil, "", apperror.NotConfigured()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", apperror.ValidationFailed("text", "text is required")
	}
	if len([]rune(text)) > tts.MaxTextLength {
		return nil, "", apperror.ValidationFailed("text", "text is too long to synthesize")
	}
	if languageCode == "" {
		return nil, "", apperror.ValidationFailed("languageCode", "language code is required")
	}

	p, err := s.access.RequireAccess(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.access.CheckRateLimit(ctx, p, UsageTTSRequests); err != nil {
		return nil, "", err
	}

	audio, contentType, err := s.client.Synthesize(ctx, text, languageCode)
	if err != nil {
		return nil, "", err
	}

	s.access.RecordUsage(userID, UsageTTSRequests, 1)
	return audio, contentType, nil
}
