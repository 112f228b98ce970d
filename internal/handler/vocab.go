package handler

import (
	"log/slog"
	"net/http"

	"github.com/lovelanguages/server/internal/auth"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/service"
)

// VocabHandler serves the unlocked-words dictionary.
type VocabHandler struct {
	vocab  *service.VocabService
	logger *slog.Logger
}

func NewVocabHandler(vocab *service.VocabService, logger *slog.Logger) *VocabHandler {
	return &VocabHandler{vocab: vocab, logger: logger}
}

// HandleAddWord stores a newly unlocked word.
// POST /api/dictionary
func (h *VocabHandler) HandleAddWord(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Word         string `json:"word"`
		Translation  string `json:"translation"`
		LanguageCode string `json:"languageCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.vocab.AddWord(r.Context(), userID, model.DictionaryEntry{
		Word:         req.Word,
		Translation:  req.Translation,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleListWords returns the classified dictionary for one language.
// GET /api/dictionary?language=pl
func (h *VocabHandler) HandleListWords(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	lang := r.URL.Query().Get("language")
	words, err := h.vocab.ListWords(r.Context(), userID, lang)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": words})
}
