// Package service contains the business rules. Handlers parse HTTP and call
// in; services validate, enforce access rules and orchestrate repositories.
// Services accept primitives and return domain errors, never HTTP types.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// TrialDuration is granted when a user chooses the free tier.
const TrialDuration = 7 * 24 * time.Hour

// usagePeriod is the rolling quota window, anchored on the signup date.
const usagePeriod = 30 * 24 * time.Hour

// Metered usage types.
const (
	UsageChatMessages   = "chat_messages"
	UsageTTSRequests    = "tts_requests"
	UsageAnswerChecks   = "answer_checks"
	UsageInvites        = "invites"
	UsageChallengeGen   = "challenge_generation"
)

// reminderDays are the remaining-day counts on which the client shows the
// trial expiry banner.
var reminderDays = map[int]bool{5: true, 3: true, 1: true, 0: true}

// Limits maps usage type -> plan -> quota per rolling window. -1 is
// unmetered.
type Limits map[string]map[string]int

// DefaultLimits is the production quota table.
func DefaultLimits() Limits {
	return Limits{
		UsageChatMessages: {model.PlanFree: 30, model.PlanStandard: 300, model.PlanUnlimited: -1},
		UsageTTSRequests:  {model.PlanFree: 20, model.PlanStandard: 200, model.PlanUnlimited: -1},
		UsageAnswerChecks: {model.PlanFree: 100, model.PlanStandard: 1000, model.PlanUnlimited: -1},
		UsageInvites:      {model.PlanFree: 10, model.PlanStandard: 10, model.PlanUnlimited: 10},
		UsageChallengeGen: {model.PlanFree: 5, model.PlanStandard: 50, model.PlanUnlimited: -1},
	}
}

// failClosedTypes are the checks that deny on a storage read error instead of
// allowing. Model calls are expensive enough to justify the stricter stance.
var failClosedTypes = map[string]bool{
	UsageChatMessages: true,
	UsageChallengeGen: true,
}

// Access sources, most privileged first.
const (
	SourceSubscription  = "subscription"
	SourcePartner       = "partner"
	SourcePromo         = "promo"
	SourceFreeTier      = "free_tier"
	SourceGrandfathered = "grandfathered"
	SourceNone          = ""
)

// TrialStatus is the payload of GET /api/trial-status.
type TrialStatus struct {
	HasAccess      bool   `json:"hasAccess"`
	AccessSource   string `json:"accessSource,omitempty"`
	FreeTierChosen bool   `json:"freeTierChosen"`
	TrialExpired   bool   `json:"trialExpired"`
	DaysRemaining  int    `json:"daysRemaining"`
	HoursRemaining int    `json:"hoursRemaining"`
	ShowReminder   bool   `json:"showReminder"`
}

// RateLimitStatus describes where a user stands against one quota.
type RateLimitStatus struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// AccessService gates features on subscription, promo, trial and quota state.
type AccessService struct {
	profiles   repository.ProfileRepository
	usage      repository.UsageRepository
	limits     Limits
	promoCodes map[string]time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewAccessService(
	profiles repository.ProfileRepository,
	usage repository.UsageRepository,
	limits Limits,
	promoCodes map[string]time.Duration,
	logger *slog.Logger,
) *AccessService {
	return &AccessService{
		profiles:   profiles,
		usage:      usage,
		limits:     limits,
		promoCodes: promoCodes,
		logger:     logger,
		now:        time.Now,
	}
}

// AccessSource resolves the precedence chain: subscription beats partner
// grant beats promo beats unexpired free-tier trial beats grandfathering.
func AccessSource(p *model.Profile, now time.Time) string {
	switch {
	case p.HasActiveSubscription():
		return SourceSubscription
	case p.SubscriptionGrantedBy != "":
		return SourcePartner
	case p.HasActivePromo(now):
		return SourcePromo
	case p.FreeTierChosenAt != nil && p.TrialExpiresAt != nil && !p.TrialExpired(now):
		return SourceFreeTier
	case p.IsGrandfathered():
		return SourceGrandfathered
	default:
		return SourceNone
	}
}

// TrialStatus computes the trial banner payload for the user.
func (s *AccessService) TrialStatus(ctx context.Context, userID string) (*TrialStatus, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	source := AccessSource(p, now)

	st := &TrialStatus{
		HasAccess:      source != SourceNone,
		AccessSource:   source,
		FreeTierChosen: p.FreeTierChosenAt != nil,
		TrialExpired:   p.TrialExpired(now),
	}

	if p.TrialExpiresAt != nil && !st.TrialExpired {
		remaining := p.TrialExpiresAt.Sub(now)
		st.DaysRemaining = int(math.Ceil(remaining.Hours() / 24))
		st.HoursRemaining = int(math.Ceil(remaining.Hours()))
		// Reminders only matter while the trial is the thing granting
		// access. The bucket is the number of whole days left, so the
		// expiry-day reminder fires during the final 24 hours.
		wholeDays := int(remaining.Hours() / 24)
		st.ShowReminder = source == SourceFreeTier && reminderDays[wholeDays]
	}
	return st, nil
}

// ChooseFreeTier puts the user on the metered free tier with a 7-day trial.
// Rejected when a stronger grant already exists; the guarded UPDATE makes the
// operation first-wins under concurrency.
func (s *AccessService) ChooseFreeTier(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case p.HasActiveSubscription():
		return nil, apperror.Rejected("ALREADY_SUBSCRIBED", "You already have an active subscription")
	case p.SubscriptionGrantedBy != "":
		return nil, apperror.Rejected("HAS_PARTNER_ACCESS", "Your partner's subscription already covers you")
	case p.HasActivePromo(now):
		return nil, apperror.Rejected("HAS_PROMO_ACCESS", "Your promo access is still active")
	}

	ok, err := s.profiles.ChooseFreeTier(ctx, userID, now, now.Add(TrialDuration))
	if err != nil {
		return nil, fmt.Errorf("choosing free tier: %w", err)
	}
	if !ok {
		return nil, apperror.Rejected("ALREADY_FREE_TIER", "You already chose the free tier")
	}

	s.logger.Info("free tier chosen", slog.String("user_id", userID))
	return s.profiles.GetProfile(ctx, userID)
}

// RedeemPromo applies a creator code, granting access until the code's
// configured duration from now.
func (s *AccessService) RedeemPromo(ctx context.Context, userID, code string) (*model.Profile, error) {
	d, ok := s.promoCodes[code]
	if !ok {
		return nil, apperror.Rejected("INVALID_PROMO", "That promo code is not valid")
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(d)
	p.PromoExpiresAt = &expires
	if err := s.profiles.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("redeeming promo: %w", err)
	}

	s.logger.Info("promo redeemed",
		slog.String("user_id", userID),
		slog.Time("expires_at", expires),
	)
	return p, nil
}

// RequireAccess returns SubscriptionRequired unless some grant covers the
// user. Called by every gated feature before doing work.
func (s *AccessService) RequireAccess(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if AccessSource(p, s.now()) == SourceNone {
		return nil, apperror.SubscriptionRequired("An active subscription or trial is required")
	}
	return p, nil
}

// windowFor returns the current quota window [start, end) for a profile.
// Windows are consecutive 30-day periods anchored on the signup date, so a
// user's quota always resets on their personal anniversary, not the 1st.
func windowFor(signup, now time.Time) (time.Time, time.Time) {
	if now.Before(signup) {
		return signup, signup.Add(usagePeriod)
	}
	elapsed := now.Sub(signup)
	periods := int(elapsed / usagePeriod)
	start := signup.Add(time.Duration(periods) * usagePeriod)
	return start, start.Add(usagePeriod)
}

func day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckRateLimit reports where the user stands against the quota for one
// usage type. Exhausted quota returns apperror.ErrRateLimited alongside the
// status. Read failures fail open except for the fail-closed types.
func (s *AccessService) CheckRateLimit(ctx context.Context, p *model.Profile, usageType string) (*RateLimitStatus, error) {
	plan := p.SubscriptionPlan
	if plan == "" {
		plan = model.PlanFree
	}

	limit, ok := s.limits[usageType][plan]
	if !ok || limit < 0 {
		return &RateLimitStatus{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	start, end := windowFor(p.CreatedAt, s.now())
	used, err := s.usage.SumUsageRange(ctx, p.ID, usageType, day(start), day(end))
	if err != nil {
		if failClosedTypes[usageType] {
			s.logger.Error("quota read failed, denying",
				slog.String("user_id", p.ID),
				slog.String("usage_type", usageType),
				slog.String("error", err.Error()),
			)
			return nil, apperror.RateLimited("Usage limit check failed, try again shortly")
		}
		s.logger.Warn("quota read failed, allowing",
			slog.String("user_id", p.ID),
			slog.String("usage_type", usageType),
			slog.String("error", err.Error()),
		)
		return &RateLimitStatus{Allowed: true, Limit: limit, Remaining: limit, ResetAt: end}, nil
	}

	st := &RateLimitStatus{
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetAt:   end,
	}
	if used >= limit {
		return st, apperror.RateLimited("You've reached your monthly limit for this feature")
	}
	st.Allowed = true
	return st, nil
}

// RecordUsage increments the user's counter in the background. Usage
// tracking never delays or fails the request it meters.
func (s *AccessService) RecordUsage(userID, usageType string, amount int) {
	today := day(s.now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.usage.IncrementUsage(ctx, userID, usageType, today, amount); err != nil {
			s.logger.Warn("usage increment failed",
				slog.String("user_id", userID),
				slog.String("usage_type", usageType),
				slog.String("error", err.Error()),
			)
		}
	}()
}
