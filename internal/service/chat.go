package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/llm"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// Chat modes selecting the tutor persona.
const (
	ModeConversation = "conversation"
	ModeGrammar      = "grammar"
	ModeTranslation  = "translation"
	ModeCoach        = "coach" // tutor-side: advice on teaching their partner
)

var modeInstructions = map[string]string{
	ModeConversation: "Hold a friendly conversation in the student's target language. Keep replies short. Correct mistakes gently, in the student's native language.",
	ModeGrammar:      "Explain grammar questions with small, concrete examples drawn from the student's vocabulary.",
	ModeTranslation:  "Translate between the student's languages and explain word choices briefly.",
	ModeCoach:        "You are advising the tutor, not the student. Suggest what to practice next based on the student's progress.",
}

// validateAnswerSchema constrains the AI verdict for answer checking.
var validateAnswerSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"correct": {"type": "boolean"},
		"feedback": {"type": "string"}
	},
	"required": ["correct"]
}`)

// ChatMessage is one turn sent by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerVerdict is the result of POST /api/validate-answer.
type AnswerVerdict struct {
	Correct  bool   `json:"correct"`
	Source   string `json:"source"` // local / ai
	Feedback string `json:"feedback,omitempty"`
}

// ChatService builds prompts and talks to the model.
type ChatService struct {
	modelClient llm.Client
	vocab       *VocabService
	profiles    repository.ProfileRepository
	access      *AccessService
	logger      *slog.Logger
}

func NewChatService(
	modelClient llm.Client,
	vocab *VocabService,
	profiles repository.ProfileRepository,
	access *AccessService,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		modelClient: modelClient,
		vocab:       vocab,
		profiles:    profiles,
		access:      access,
		logger:      logger,
	}
}

// buildPrompt assembles the system prompt from mode, profile and vocabulary
// context. Tutors additionally get their partner's progress (the partner
// context); students never see another profile's data.
func (s *ChatService) buildPrompt(ctx context.Context, p *model.Profile, mode string) (string, error) {
	instructions, ok := modeInstructions[mode]
	if !ok {
		return "", apperror.ValidationFailed("mode", "unknown chat mode")
	}

	var b strings.Builder
	b.WriteString("You are a warm, encouraging language tutor inside a couples language-learning app.\n")
	fmt.Fprintf(&b, "MODE: %s\n", instructions)
	fmt.Fprintf(&b, "Native language: %s. Target language: %s.\n", p.NativeLanguage, p.ActiveLanguage)

	// Whose vocabulary goes in depends on who is asking. Coach mode is the
	// tutor asking about the student; everything else is the student's own.
	vocabOwner := p.ID
	lang := p.ActiveLanguage
	if mode == ModeCoach {
		if p.LinkedUserID == "" {
			return "", apperror.Rejected("NO_PARTNER", "Coach mode needs a linked student")
		}
		student, err := s.profiles.GetProfile(ctx, p.LinkedUserID)
		if err != nil {
			return "", err
		}
		vocabOwner = student.ID
		lang = student.ActiveLanguage
		fmt.Fprintf(&b, "You are coaching %s, whose partner is learning %s.\n", p.FullName, lang)
	}

	vc, err := s.vocab.BuildContext(ctx, vocabOwner, lang)
	if err != nil {
		return "", err
	}
	b.WriteString(vc.PromptSection())
	return b.String(), nil
}

// gate enforces the subscription and chat quota before any model call.
func (s *ChatService) gate(ctx context.Context, userID string) (*model.Profile, error) {
	if s.modelClient == nil {
		return nil, apperror.NotConfigured()
	}
	p, err := s.access.RequireAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.CheckRateLimit(ctx, p, UsageChatMessages); err != nil {
		return nil, err
	}
	return p, nil
}

func toLLMMessages(msgs []ChatMessage) ([]llm.Message, error) {
	if len(msgs) == 0 {
		return nil, apperror.ValidationFailed("messages", "at least one message is required")
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "assistant" {
			return nil, apperror.ValidationFailed("messages", "message roles must be user or assistant")
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// Complete answers a chat in one shot.
func (s *ChatService) Complete(ctx context.Context, userID, mode string, msgs []ChatMessage) (string, error) {
	p, err := s.gate(ctx, userID)
	if err != nil {
		return "", err
	}
	system, err := s.buildPrompt(ctx, p, mode)
	if err != nil {
		return "", err
	}
	messages, err := toLLMMessages(msgs)
	if err != nil {
		return "", err
	}

	reply, err := s.modelClient.Complete(ctx, llm.Request{System: system, Messages: messages})
	if err != nil {
		return "", err
	}

	s.access.RecordUsage(userID, UsageChatMessages, 1)
	return reply, nil
}

// Stream answers a chat as sanitized chunks in arrival order. emit is called
// for each forwardable piece of text; usage is recorded after the stream
// finishes cleanly.
func (s *ChatService) Stream(ctx context.Context, userID, mode string, msgs []ChatMessage, emit func(chunk string) error) error {
	p, err := s.gate(ctx, userID)
	if err != nil {
		return err
	}
	system, err := s.buildPrompt(ctx, p, mode)
	if err != nil {
		return err
	}
	messages, err := toLLMMessages(msgs)
	if err != nil {
		return err
	}

	sanitizer := llm.NewStreamSanitizer()
	err = s.modelClient.Stream(ctx, llm.Request{System: system, Messages: messages}, func(chunk string) error {
		if out := sanitizer.Feed(chunk); out != "" {
			return emit(out)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if tail := sanitizer.Flush(); tail != "" {
		if err := emit(tail); err != nil {
			return err
		}
	}

	s.access.RecordUsage(userID, UsageChatMessages, 1)
	return nil
}

// ValidateAnswer checks a student's answer, locally first and via the model
// only when the local check is unsure.
func (s *ChatService) ValidateAnswer(ctx context.Context, userID, given, expected, languageCode string) (*AnswerVerdict, error) {
	switch LocalMatch(given, expected, languageCode) {
	case MatchYes:
		return &AnswerVerdict{Correct: true, Source: "local"}, nil
	case MatchNo:
		return &AnswerVerdict{Correct: false, Source: "local"}, nil
	}

	if s.modelClient == nil {
		// No AI available: the strict local verdict stands.
		return &AnswerVerdict{Correct: false, Source: "local"}, nil
	}

	p, err := s.access.RequireAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.CheckRateLimit(ctx, p, UsageAnswerChecks); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Expected translation: %q. Student's answer: %q. Is the student's answer an acceptable translation? Consider synonyms and minor spelling slips.",
		expected, given,
	)
	raw, err := s.modelClient.Complete(ctx, llm.Request{
		System:   "You judge language-learning answers. Respond as JSON.",
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Schema:   validateAnswerSchema,
	})
	if err != nil {
		return nil, err
	}

	var verdict struct {
		Correct  bool   `json:"correct"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, apperror.Upstream("AI returned a malformed verdict", true)
	}

	s.access.RecordUsage(userID, UsageAnswerChecks, 1)
	return &AnswerVerdict{Correct: verdict.Correct, Source: "ai", Feedback: verdict.Feedback}, nil
}
