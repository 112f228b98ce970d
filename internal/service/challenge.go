package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/llm"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// challengeItemsSchema constrains AI-generated challenges to the exact item
// shape the client renders.
var challengeItemsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"word": {"type": "string"},
					"translation": {"type": "string"},
					"prompt": {"type": "string"}
				},
				"required": ["word", "translation"]
			}
		}
	},
	"required": ["title", "items"]
}`)

// ChallengeService runs the request/assign/play loop between the couple.
type ChallengeService struct {
	challenges    repository.ChallengeRepository
	profiles      repository.ProfileRepository
	dict          repository.DictionaryRepository
	notifications repository.NotificationRepository
	access        *AccessService
	model         llm.Client
	logger        *slog.Logger
	now           func() time.Time
}

func NewChallengeService(
	challenges repository.ChallengeRepository,
	profiles repository.ProfileRepository,
	dict repository.DictionaryRepository,
	notifications repository.NotificationRepository,
	access *AccessService,
	modelClient llm.Client,
	logger *slog.Logger,
) *ChallengeService {
	return &ChallengeService{
		challenges:    challenges,
		profiles:      profiles,
		dict:          dict,
		notifications: notifications,
		access:        access,
		model:         modelClient,
		logger:        logger,
		now:           time.Now,
	}
}

func validRequestType(t string) bool {
	return t == model.RequestGeneral || t == model.RequestTopic || t == model.RequestSpecificWords
}

// CreateRequest files a student's challenge request with their tutor.
// Students only, linked tutor required, one pending request at a time.
func (s *ChallengeService) CreateRequest(ctx context.Context, studentID, requestType, topic, message string, wordIDs []string) (*model.ChallengeRequest, error) {
	if !validRequestType(requestType) {
		return nil, apperror.ValidationFailed("requestType", "unknown request type")
	}
	if requestType == model.RequestTopic && strings.TrimSpace(topic) == "" {
		return nil, apperror.ValidationFailed("topic", "topic requests need a topic")
	}
	if requestType == model.RequestSpecificWords && len(wordIDs) == 0 {
		return nil, apperror.ValidationFailed("wordIds", "specific-word requests need word ids")
	}

	student, err := s.profiles.GetProfile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != model.RoleStudent {
		return nil, apperror.Forbidden("Only students can request challenges")
	}
	if student.LinkedUserID == "" {
		return nil, apperror.Rejected("NO_PARTNER", "Link with your tutor before requesting challenges")
	}

	pending, err := s.challenges.PendingRequestForStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("checking pending request: %w", err)
	}
	if pending != nil {
		return nil, apperror.Rejected("REQUEST_PENDING", "You already have a pending challenge request")
	}

	req := &model.ChallengeRequest{
		StudentID:   studentID,
		TutorID:     student.LinkedUserID,
		RequestType: requestType,
		Topic:       strings.TrimSpace(topic),
		Message:     strings.TrimSpace(message),
		WordIDs:     wordIDs,
	}
	if err := s.challenges.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("creating challenge request: %w", err)
	}

	n := &model.Notification{
		UserID:  req.TutorID,
		Type:    "challenge_request",
		Title:   "Challenge requested",
		Message: fmt.Sprintf("%s asked for a new challenge", student.FullName),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("challenge request notification failed",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
	}

	return req, nil
}

// ListRequests returns the tutor's incoming requests.
func (s *ChallengeService) ListRequests(ctx context.Context, tutorID string) ([]model.ChallengeRequest, error) {
	return s.challenges.ListRequestsForTutor(ctx, tutorID, repository.ListOptions{Limit: 50})
}

// DeclineRequest lets the tutor dismiss a request without building a
// challenge.
func (s *ChallengeService) DeclineRequest(ctx context.Context, tutorID, requestID string) error {
	req, err := s.requestForTutor(ctx, tutorID, requestID)
	if err != nil {
		return err
	}
	if req.Status != model.RequestPending {
		return apperror.Rejected("NOT_PENDING", "That request was already handled")
	}
	return s.challenges.UpdateRequestStatus(ctx, requestID, model.RequestDeclined)
}

// requestForTutor loads a request and verifies it is addressed to this
// tutor. Requests belonging to other couples come back as not found.
func (s *ChallengeService) requestForTutor(ctx context.Context, tutorID, requestID string) (*model.ChallengeRequest, error) {
	req, err := s.challenges.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TutorID != tutorID {
		return nil, apperror.NotFound("challenge request", requestID)
	}
	return req, nil
}

// CreateChallenge assigns a challenge to the tutor's linked student. When
// items are empty and a request ID is given, items are AI-generated from the
// request and the student's vocabulary.
func (s *ChallengeService) CreateChallenge(ctx context.Context, tutorID, title, challengeType, requestID string, items []model.ChallengeItem) (*model.Challenge, error) {
	tutor, err := s.profiles.GetProfile(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if tutor.Role != model.RoleTutor {
		return nil, apperror.Forbidden("Only tutors can assign challenges")
	}
	if tutor.LinkedUserID == "" {
		return nil, apperror.Rejected("NO_PARTNER", "Link with your student before assigning challenges")
	}

	var req *model.ChallengeRequest
	if requestID != "" {
		req, err = s.requestForTutor(ctx, tutorID, requestID)
		if err != nil {
			return nil, err
		}
	}

	if len(items) == 0 {
		if req == nil {
			return nil, apperror.ValidationFailed("items", "challenge items are required")
		}
		if _, err := s.access.CheckRateLimit(ctx, tutor, UsageChallengeGen); err != nil {
			return nil, err
		}
		title, items, err = s.generateItems(ctx, tutor.LinkedUserID, req)
		if err != nil {
			return nil, err
		}
		s.access.RecordUsage(tutorID, UsageChallengeGen, 1)
	}

	if challengeType == "" {
		challengeType = "quiz"
	}
	if strings.TrimSpace(title) == "" {
		title = "Practice challenge"
	}

	c := &model.Challenge{
		TutorID:   tutorID,
		StudentID: tutor.LinkedUserID,
		RequestID: requestID,
		Title:     title,
		Type:      challengeType,
		Items:     items,
		Total:     len(items),
	}
	if err := s.challenges.CreateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}

	if req != nil {
		if err := s.challenges.UpdateRequestStatus(ctx, req.ID, model.RequestFulfilled); err != nil {
			s.logger.Warn("marking request fulfilled failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	n := &model.Notification{
		UserID:  c.StudentID,
		Type:    "challenge_assigned",
		Title:   "New challenge",
		Message: c.Title,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("challenge notification failed",
			slog.String("challenge_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	return c, nil
}

// generateItems asks the model for challenge items built around the request
// and the student's current vocabulary.
func (s *ChallengeService) generateItems(ctx context.Context, studentID string, req *model.ChallengeRequest) (string, []model.ChallengeItem, error) {
	if s.model == nil {
		return "", nil, apperror.NotConfigured()
	}

	var prompt strings.Builder
	prompt.WriteString("Create a short vocabulary challenge for a language student.\n")
	switch req.RequestType {
	case model.RequestTopic:
		fmt.Fprintf(&prompt, "Topic: %s\n", req.Topic)
	case model.RequestSpecificWords:
		entries, err := s.dict.GetEntriesByIDs(ctx, studentID, req.WordIDs)
		if err != nil {
			return "", nil, fmt.Errorf("loading requested words: %w", err)
		}
		prompt.WriteString("Build it from these words:\n")
		for _, e := range entries {
			fmt.Fprintf(&prompt, "- %s = %s\n", e.Word, e.Translation)
		}
	}
	if req.Message != "" {
		fmt.Fprintf(&prompt, "Student's note: %s\n", req.Message)
	}
	prompt.WriteString("Return 5 to 10 items.")

	raw, err := s.model.Complete(ctx, llm.Request{
		System:   "You generate vocabulary challenges as JSON.",
		Messages: []llm.Message{{Role: "user", Content: prompt.String()}},
		Schema:   challengeItemsSchema,
	})
	if err != nil {
		return "", nil, err
	}

	var parsed struct {
		Title string                `json:"title"`
		Items []model.ChallengeItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", nil, apperror.Upstream("AI returned malformed challenge items", true)
	}
	if len(parsed.Items) == 0 {
		return "", nil, apperror.Upstream("AI returned no challenge items", true)
	}
	return parsed.Title, parsed.Items, nil
}

// Start marks the student's challenge as in progress.
func (s *ChallengeService) Start(ctx context.Context, studentID, challengeID string) (*model.Challenge, error) {
	c, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.StudentID != studentID {
		return nil, apperror.Forbidden("That challenge belongs to someone else")
	}
	if c.Status != model.ChallengeAssigned {
		return nil, apperror.Rejected("ALREADY_STARTED", "That challenge was already started")
	}

	now := s.now()
	c.Status = model.ChallengeStarted
	c.StartedAt = &now
	if err := s.challenges.UpdateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("starting challenge: %w", err)
	}
	return c, nil
}

// Submit scores the student's answers locally and completes the challenge.
// Answers line up with items by index; missing answers count as wrong.
func (s *ChallengeService) Submit(ctx context.Context, studentID, challengeID string, answers []string, languageCode string) (*model.Challenge, error) {
	c, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.StudentID != studentID {
		return nil, apperror.Forbidden("That challenge belongs to someone else")
	}
	if c.Status == model.ChallengeCompleted {
		return nil, apperror.Rejected("ALREADY_COMPLETED", "That challenge was already submitted")
	}

	score := 0
	for i, item := range c.Items {
		if i >= len(answers) {
			break
		}
		if LocalMatch(answers[i], item.Translation, languageCode) == MatchYes {
			score++
		}
	}

	now := s.now()
	c.Status = model.ChallengeCompleted
	c.Score = score
	c.CompletedAt = &now
	if err := s.challenges.UpdateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("completing challenge: %w", err)
	}

	n := &model.Notification{
		UserID:  c.TutorID,
		Type:    "challenge_completed",
		Title:   "Challenge completed",
		Message: fmt.Sprintf("%s: %d/%d", c.Title, c.Score, c.Total),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("completion notification failed",
			slog.String("challenge_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	return c, nil
}

// ListForStudent returns the student's challenges, newest first.
func (s *ChallengeService) ListForStudent(ctx context.Context, studentID string) ([]model.Challenge, error) {
	return s.challenges.ListChallengesForStudent(ctx, studentID, repository.ListOptions{Limit: 50})
}
