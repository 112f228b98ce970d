package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/service"
)

// ChatHandler serves the AI tutor endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Mode     string                `json:"mode"`
	Messages []service.ChatMessage `json:"messages"`
}

// HandleChat answers a conversation in one shot.
// POST /api/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Mode == "" {
		req.Mode = service.ModeConversation
	}

	reply, err := h.chat.Complete(r.Context(), userID, req.Mode, req.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// streamEvent is one SSE frame of the chat stream.
type streamEvent struct {
	Type    string `json:"type"` // chunk / done / error
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// HandleChatStream answers a conversation as server-sent events. Errors
// before the first byte use the normal JSON error shape; once streaming has
// begun they become an in-stream error event, since the 200 is already out.
// POST /api/chat-stream
func (h *ChatHandler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Mode == "" {
		req.Mode = service.ModeConversation
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	started := false
	send := func(ev streamEvent) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chat.Stream(r.Context(), userID, req.Mode, req.Messages, func(chunk string) error {
		return send(streamEvent{Type: "chunk", Text: chunk})
	})
	if err != nil {
		if !started {
			writeError(w, err)
			return
		}
		h.logger.Warn("chat stream interrupted",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		send(streamEvent{Type: "error", Message: "The tutor stopped responding, please retry"})
		return
	}

	send(streamEvent{Type: "done"})
}

// HandleValidateAnswer checks a translation, locally first and via the AI
// only when the local check cannot decide.
// POST /api/validate-answer
func (h *ChatHandler) HandleValidateAnswer(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Answer       string `json:"answer"`
		Expected     string `json:"expected"`
		LanguageCode string `json:"languageCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	verdict, err := h.chat.ValidateAnswer(r.Context(), userID, req.Answer, req.Expected, req.LanguageCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}
