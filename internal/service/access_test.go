package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
)

func ptr(t time.Time) *time.Time { return &t }

func TestAccessSource_Precedence(t *testing.T) {
	now := time.Now()
	active := ptr(now.Add(24 * time.Hour))
	chosen := ptr(now.Add(-time.Hour))

	tests := []struct {
		name string
		p    model.Profile
		want string
	}{
		{"subscription wins over everything", model.Profile{
			SubscriptionStatus: "active", SubscriptionGrantedBy: "x",
			PromoExpiresAt: active, FreeTierChosenAt: chosen, TrialExpiresAt: active,
		}, SourceSubscription},
		{"partner grant beats promo", model.Profile{
			SubscriptionGrantedBy: "partner", PromoExpiresAt: active,
		}, SourcePartner},
		{"promo beats free tier", model.Profile{
			PromoExpiresAt: active, FreeTierChosenAt: chosen, TrialExpiresAt: active,
		}, SourcePromo},
		{"free tier with live trial", model.Profile{
			FreeTierChosenAt: chosen, TrialExpiresAt: active,
		}, SourceFreeTier},
		{"grandfathered: free tier, no trial stamp", model.Profile{
			FreeTierChosenAt: chosen,
		}, SourceGrandfathered},
		{"expired trial grants nothing", model.Profile{
			FreeTierChosenAt: chosen, TrialExpiresAt: ptr(now.Add(-time.Hour)),
		}, SourceNone},
		{"expired promo grants nothing", model.Profile{
			PromoExpiresAt: ptr(now.Add(-time.Hour)),
		}, SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccessSource(&tt.p, now))
		})
	}
}

func TestTrialExpiry_Inclusive(t *testing.T) {
	now := time.Now()
	p := model.Profile{TrialExpiresAt: ptr(now)}
	// At exactly the expiry instant the trial is over.
	assert.True(t, p.TrialExpired(now))
	assert.False(t, p.TrialExpired(now.Add(-time.Second)))
}

func TestTrialStatus_ReminderDays(t *testing.T) {
	store := newMockStore()
	now := time.Now()

	tests := []struct {
		daysLeft     float64
		wantReminder bool
	}{
		{6.5, false},
		{5.5, true},  // 5 whole days left
		{4.5, false}, // 4 whole days, not a reminder day
		{3.2, true},  // 3 whole days left
		{2.5, false},
		{1.5, true}, // 1 whole day left
		{0.5, true}, // final 24 hours
	}

	for _, tt := range tests {
		p := seedProfile(t, store, func(p *model.Profile) {
			chosen := now.Add(-time.Hour)
			p.FreeTierChosenAt = &chosen
			p.TrialExpiresAt = ptr(now.Add(time.Duration(tt.daysLeft * 24 * float64(time.Hour))))
		})
		svc := newAccessService(store, now)

		st, err := svc.TrialStatus(context.Background(), p.ID)
		require.NoError(t, err)
		assert.True(t, st.HasAccess)
		assert.Equal(t, tt.wantReminder, st.ShowReminder, "daysLeft=%v", tt.daysLeft)
	}
}

func TestTrialStatus_SubscriptionAlwaysHasAccess(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionStatus = "active"
		chosen := now.Add(-30 * 24 * time.Hour)
		p.FreeTierChosenAt = &chosen
		p.TrialExpiresAt = ptr(now.Add(-20 * 24 * time.Hour))
	})
	svc := newAccessService(store, now)

	st, err := svc.TrialStatus(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, st.HasAccess)
	assert.Equal(t, SourceSubscription, st.AccessSource)
	assert.True(t, st.TrialExpired)
	assert.False(t, st.ShowReminder)
}

func TestChooseFreeTier_Rejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		mutate   func(*model.Profile)
		wantCode string
	}{
		{"active subscription", func(p *model.Profile) {
			p.SubscriptionStatus = "active"
		}, "ALREADY_SUBSCRIBED"},
		{"partner grant", func(p *model.Profile) {
			p.SubscriptionGrantedBy = "partner-id"
		}, "HAS_PARTNER_ACCESS"},
		{"active promo", func(p *model.Profile) {
			p.PromoExpiresAt = ptr(now.Add(time.Hour))
		}, "HAS_PROMO_ACCESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			p := seedProfile(t, store, tt.mutate)
			svc := newAccessService(store, now)

			_, err := svc.ChooseFreeTier(context.Background(), p.ID)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestChooseFreeTier_SucceedsThenAlreadyFreeTier(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, nil)
	svc := newAccessService(store, now)

	got, err := svc.ChooseFreeTier(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FreeTierChosenAt)
	require.NotNil(t, got.TrialExpiresAt)
	assert.WithinDuration(t, now.Add(TrialDuration), *got.TrialExpiresAt, time.Second)

	_, err = svc.ChooseFreeTier(context.Background(), p.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ALREADY_FREE_TIER", appErr.Code)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestRedeemPromo(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, nil)
	svc := newAccessService(store, now)

	got, err := svc.RedeemPromo(context.Background(), p.ID, "LOVEPROMO")
	require.NoError(t, err)
	require.NotNil(t, got.PromoExpiresAt)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), *got.PromoExpiresAt, time.Second)

	_, err = svc.RedeemPromo(context.Background(), p.ID, "BOGUS")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_PROMO", appErr.Code)
}

func TestCheckRateLimit_QuotaExhausted(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionPlan = model.PlanFree
		p.CreatedAt = now.Add(-10 * 24 * time.Hour)
	})
	svc := newAccessService(store, now)

	limit := DefaultLimits()[UsageTTSRequests][model.PlanFree]
	store.usage[p.ID+"|"+UsageTTSRequests+"|"+day(now)] = limit

	st, err := svc.CheckRateLimit(context.Background(), p, UsageTTSRequests)
	require.ErrorIs(t, err, apperror.ErrRateLimited)
	require.NotNil(t, st)
	assert.Equal(t, 0, st.Remaining)
	assert.Equal(t, limit, st.Used)
	assert.False(t, st.ResetAt.IsZero())
}

func TestCheckRateLimit_WindowAnchoredOnSignup(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionPlan = model.PlanFree
		// Signed up 35 days ago: the first 30-day window is over, usage from
		// back then must not count against the current window.
		p.CreatedAt = now.Add(-35 * 24 * time.Hour)
	})
	svc := newAccessService(store, now)

	oldDay := day(now.Add(-33 * 24 * time.Hour))
	store.usage[p.ID+"|"+UsageTTSRequests+"|"+oldDay] = 1000

	st, err := svc.CheckRateLimit(context.Background(), p, UsageTTSRequests)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, 0, st.Used)
}

func TestCheckRateLimit_UnlimitedPlan(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionPlan = model.PlanUnlimited
	})
	svc := newAccessService(store, now)

	st, err := svc.CheckRateLimit(context.Background(), p, UsageChatMessages)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, -1, st.Limit)
}

func TestCheckRateLimit_FailOpenAndFailClosed(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	p := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionPlan = model.PlanFree
	})
	svc := newAccessService(store, now)
	store.usageSumErr = errors.New("db down")

	// TTS fails open.
	st, err := svc.CheckRateLimit(context.Background(), p, UsageTTSRequests)
	require.NoError(t, err)
	assert.True(t, st.Allowed)

	// Chat fails closed.
	_, err = svc.CheckRateLimit(context.Background(), p, UsageChatMessages)
	assert.ErrorIs(t, err, apperror.ErrRateLimited)
}

func TestRequireAccess(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	covered := seedProfile(t, store, func(p *model.Profile) {
		p.SubscriptionStatus = "active"
	})
	uncovered := seedProfile(t, store, nil)
	svc := newAccessService(store, now)

	_, err := svc.RequireAccess(context.Background(), covered.ID)
	assert.NoError(t, err)

	_, err = svc.RequireAccess(context.Background(), uncovered.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
