// Package repository declares the storage interfaces consumed by the service
// layer. The sqlite subpackage is the only implementation; services depend on
// these interfaces so tests can substitute in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/lovelanguages/server/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ProfileRepository stores user profiles and the partner link.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error

	// ChooseFreeTier sets free_tier_chosen_at and trial_expires_at only when
	// free_tier_chosen_at is still NULL. Returns false when the guard fails,
	// i.e. the free tier was already chosen (possibly by a concurrent call).
	ChooseFreeTier(ctx context.Context, id string, chosenAt, trialExpiresAt time.Time) (bool, error)

	SetAppleRefreshToken(ctx context.Context, id, token string) error

	// LinkProfiles connects two profiles bidirectionally; DelinkProfiles
	// clears both sides and any inherited subscription grant.
	LinkProfiles(ctx context.Context, userID, partnerID string) error
	DelinkProfiles(ctx context.Context, userID, partnerID string) error
}

// DictionaryRepository stores learned words and their score counters.
type DictionaryRepository interface {
	CreateEntry(ctx context.Context, e *model.DictionaryEntry) error
	ListEntries(ctx context.Context, userID, lang string, limit int) ([]model.DictionaryEntry, error)
	CountEntries(ctx context.Context, userID, lang string) (int, error)
	GetEntriesByIDs(ctx context.Context, userID string, ids []string) ([]model.DictionaryEntry, error)

	ListScores(ctx context.Context, userID, lang string) ([]model.WordScore, error)
	// GetScore returns (nil, nil) when the word has no score row yet.
	GetScore(ctx context.Context, userID, wordID string) (*model.WordScore, error)
	UpsertScore(ctx context.Context, s *model.WordScore) error
}

// LoveNoteRepository stores affection messages between linked partners.
type LoveNoteRepository interface {
	CreateLoveNote(ctx context.Context, n *model.LoveNote) error
	// CountLoveNotesSince counts notes by sender created at or after the
	// given time. The daily limit check passes the start of the current
	// calendar day.
	CountLoveNotesSince(ctx context.Context, senderID string, since time.Time) (int, error)
	ListLoveNotesForCouple(ctx context.Context, userID, partnerID string, opts ListOptions) ([]model.LoveNote, error)
}

// NotificationRepository stores the per-user inbox and the couple's
// activity feed.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) error

	CreateActivity(ctx context.Context, e *model.ActivityEvent) error
	ListActivity(ctx context.Context, userID string, opts ListOptions) ([]model.ActivityEvent, error)
}

// ChallengeRepository stores challenge requests and challenges.
type ChallengeRepository interface {
	CreateRequest(ctx context.Context, r *model.ChallengeRequest) error
	// PendingRequestForStudent returns nil when the student has no pending
	// request.
	PendingRequestForStudent(ctx context.Context, studentID string) (*model.ChallengeRequest, error)
	GetRequest(ctx context.Context, id string) (*model.ChallengeRequest, error)
	ListRequestsForTutor(ctx context.Context, tutorID string, opts ListOptions) ([]model.ChallengeRequest, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error

	CreateChallenge(ctx context.Context, c *model.Challenge) error
	GetChallenge(ctx context.Context, id string) (*model.Challenge, error)
	ListChallengesForStudent(ctx context.Context, studentID string, opts ListOptions) ([]model.Challenge, error)
	UpdateChallenge(ctx context.Context, c *model.Challenge) error
}

// GameRepository stores finished game sessions, their answers and
// achievement unlocks.
type GameRepository interface {
	CreateSession(ctx context.Context, s *model.GameSession, answers []model.GameAnswer) error
	ListSessions(ctx context.Context, userID string, opts ListOptions) ([]model.GameSession, error)
	CountSessions(ctx context.Context, userID string) (int, error)

	ListUnlocks(ctx context.Context, userID string) ([]model.AchievementUnlock, error)
	CreateUnlock(ctx context.Context, u *model.AchievementUnlock) error
}

// UsageRepository stores daily counters for metered features.
type UsageRepository interface {
	// IncrementUsage adds amount to the (user, type, day) counter, creating
	// the row if needed. Dates are YYYY-MM-DD strings.
	IncrementUsage(ctx context.Context, userID, usageType, day string, amount int) error
	// SumUsageRange totals usage where fromDate <= usage_date < toDate.
	SumUsageRange(ctx context.Context, userID, usageType, fromDate, toDate string) (int, error)
}

// InviteRepository stores partner-linking invite codes.
type InviteRepository interface {
	CreateInvite(ctx context.Context, i *model.Invite) error
	GetInvite(ctx context.Context, code string) (*model.Invite, error)
	MarkInviteUsed(ctx context.Context, code, usedBy string, at time.Time) error
}

// ArticleRepository pages through generated blog articles; consumed by the
// offline blogtool, not by request handlers.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, a *model.Article) error
	ListArticles(ctx context.Context, opts ListOptions) ([]model.Article, error)
	CountArticles(ctx context.Context) (int, error)
}
