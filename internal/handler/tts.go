package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/service"
)

// TTSHandler proxies speech synthesis to the configured provider.
type TTSHandler struct {
	tts    *service.TTSService
	logger *slog.Logger
}

func NewTTSHandler(tts *service.TTSService, logger *slog.Logger) *TTSHandler {
	return &TTSHandler{tts: tts, logger: logger}
}

// HandleSynthesize returns raw audio bytes for the given text.
// POST /api/tts
func (h *TTSHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Text         string `json:"text"`
		LanguageCode string `json:"languageCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	audio, contentType, err := h.tts.Speak(r.Context(), userID, req.Text, req.LanguageCode)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}
