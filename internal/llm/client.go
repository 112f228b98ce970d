// Package llm is a thin HTTP client for an OpenAI-compatible chat completion
// endpoint. It supports one-shot completions, token streaming and structured
// JSON responses constrained by a schema.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // system / user / assistant
	Content string `json:"content"`
}

// Request describes one model call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
	// Schema, when set, constrains the response to a JSON object matching it.
	Schema json.RawMessage
}

// Client calls the model provider. Implemented by *HTTPClient; services take
// the interface so tests can substitute a fake.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, emit func(chunk string) error) error
}

// HTTPClient talks to a chat-completions endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(baseURL, apiKey, model string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model          string         `json:"model"`
	Messages       []wireMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *HTTPClient) buildRequest(req Request, stream bool) wireRequest {
	msgs := make([]wireMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}

	wr := wireRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if req.Schema != nil {
		wr.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "response",
				"schema": req.Schema,
			},
		}
	}
	return wr
}

func (c *HTTPClient) post(ctx context.Context, body wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.Upstream("AI provider unreachable", true)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("llm provider error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		// 429 and 5xx are worth a client retry; 4xx is our fault.
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, apperror.Upstream("AI provider request failed", retryable)
	}

	return resp, nil
}

// Complete performs a single non-streaming completion.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", apperror.Upstream("AI provider returned malformed response", true)
	}
	if len(wr.Choices) == 0 {
		return "", apperror.Upstream("AI provider returned no content", true)
	}
	return wr.Choices[0].Message.Content, nil
}

// Stream performs a streaming completion, invoking emit for each content
// chunk in arrival order. emit returning an error aborts the stream.
func (c *HTTPClient) Stream(ctx context.Context, req Request, emit func(chunk string) error) error {
	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}

		var wr wireResponse
		if err := json.Unmarshal([]byte(payload), &wr); err != nil {
			// Skip malformed keep-alive frames rather than killing the stream.
			continue
		}
		if len(wr.Choices) == 0 {
			continue
		}
		chunk := wr.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperror.Upstream("AI provider stream interrupted", true)
	}
	return nil
}
