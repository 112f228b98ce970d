// Package tts proxies text-to-speech synthesis through the configured
// provider. The server never stores audio; bytes are forwarded to the client
// as-is.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
)

// MaxTextLength bounds the text sent to the provider; anything longer is a
// validation failure, not a truncation.
const MaxTextLength = 500

// Client synthesizes speech. Implemented by *HTTPClient.
type Client interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, string, error)
}

// HTTPClient posts synthesis requests to a provider endpoint that accepts
// JSON and answers with audio bytes.
type HTTPClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

// NewHTTPClient returns a client, or nil when endpoint is empty so callers
// can detect unconfigured TTS at startup.
func NewHTTPClient(endpoint, apiKey string, logger *slog.Logger) *HTTPClient {
	if endpoint == "" {
		return nil
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type synthesisRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Synthesize returns the audio bytes and their content type.
func (c *HTTPClient) Synthesize(ctx context.Context, text, languageCode string) ([]byte, string, error) {
	payload, err := json.Marshal(synthesisRequest{Text: text, Language: languageCode})
	if err != nil {
		return nil, "", fmt.Errorf("tts: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("tts: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", apperror.Upstream("speech provider unreachable", true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("tts provider error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return nil, "", apperror.Upstream("speech synthesis failed", resp.StatusCode >= 500)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperror.Upstream("speech provider stream interrupted", true)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}
