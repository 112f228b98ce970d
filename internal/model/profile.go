// Package model defines the persistent entities of the application.
//
// Models are plain structs with JSON tags matching the API's wire format.
// They carry no behaviour beyond small helpers; business rules live in the
// service layer.
package model

import "time"

// Roles of the two halves of a linked couple.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// Subscription plans. "free" is the metered tier chosen during onboarding.
const (
	PlanFree      = "free"
	PlanStandard  = "standard"
	PlanUnlimited = "unlimited"
)

// Profile is a user identity plus everything the access gates read:
// subscription state, the three independent access-grant mechanisms
// (promo, trial, free tier), language settings and the partner link.
type Profile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never serialized
	FullName     string `json:"fullName"`
	Role         string `json:"role"` // student or tutor

	// LinkedUserID points at the partner profile; the link is bidirectional.
	LinkedUserID string `json:"linkedUserId,omitempty"`

	NativeLanguage string `json:"nativeLanguage"`
	ActiveLanguage string `json:"activeLanguage"` // target language being learned

	XP    int    `json:"xp"`
	Level string `json:"level"`

	SubscriptionStatus    string     `json:"subscriptionStatus"` // e.g. "active", "canceled", ""
	SubscriptionPlan      string     `json:"subscriptionPlan"`   // free / standard / unlimited
	SubscriptionGrantedBy string     `json:"subscriptionGrantedBy,omitempty"`
	PromoExpiresAt        *time.Time `json:"promoExpiresAt,omitempty"`
	TrialExpiresAt        *time.Time `json:"trialExpiresAt,omitempty"`
	FreeTierChosenAt      *time.Time `json:"freeTierChosenAt,omitempty"`

	// AppleRefreshToken is stored after native Apple Sign-In so the account
	// can be revoked with Apple when the user deletes it.
	AppleRefreshToken string `json:"-"`

	IsAdmin   bool      `json:"isAdmin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasActiveSubscription reports whether the paid subscription is current.
func (p *Profile) HasActiveSubscription() bool {
	return p.SubscriptionStatus == "active"
}

// HasActivePromo reports whether a creator promo grants access at now.
func (p *Profile) HasActivePromo(now time.Time) bool {
	return p.PromoExpiresAt != nil && p.PromoExpiresAt.After(now)
}

// TrialExpired reports whether the free-tier trial has lapsed. Expiry is
// inclusive: at exactly TrialExpiresAt the trial is over.
func (p *Profile) TrialExpired(now time.Time) bool {
	return p.TrialExpiresAt != nil && !p.TrialExpiresAt.After(now)
}

// IsGrandfathered reports whether the profile chose the free tier before
// trials existed: free_tier_chosen_at set but no trial_expires_at.
func (p *Profile) IsGrandfathered() bool {
	return p.FreeTierChosenAt != nil && p.TrialExpiresAt == nil
}
