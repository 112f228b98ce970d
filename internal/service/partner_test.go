package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
)

func newPartnerService(store *mockStore) *PartnerService {
	access := newAccessService(store, time.Now())
	return NewPartnerService(store, store, access, testLogger())
}

func TestInviteFlow_LinksCouple(t *testing.T) {
	store := newMockStore()
	tutor := seedProfile(t, store, func(p *model.Profile) { p.Role = model.RoleTutor })
	student := seedProfile(t, store, nil)
	svc := newPartnerService(store)

	inv, err := svc.CreateInvite(context.Background(), tutor.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Code)
	// A tutor's invite hands the redeemer the student role.
	assert.Equal(t, model.RoleStudent, inv.Role)

	linked, err := svc.CompleteInvite(context.Background(), student.ID, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, tutor.ID, linked.LinkedUserID)
	assert.Equal(t, model.RoleStudent, linked.Role)

	gotTutor, err := store.GetProfile(context.Background(), tutor.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ID, gotTutor.LinkedUserID)
}

func TestCompleteInvite_SingleUse(t *testing.T) {
	store := newMockStore()
	tutor := seedProfile(t, store, func(p *model.Profile) { p.Role = model.RoleTutor })
	first := seedProfile(t, store, nil)
	second := seedProfile(t, store, nil)
	svc := newPartnerService(store)

	inv, err := svc.CreateInvite(context.Background(), tutor.ID)
	require.NoError(t, err)

	_, err = svc.CompleteInvite(context.Background(), first.ID, inv.Code)
	require.NoError(t, err)

	_, err = svc.CompleteInvite(context.Background(), second.ID, inv.Code)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVITE_USED", appErr.Code)
}

func TestCompleteInvite_Rejections(t *testing.T) {
	store := newMockStore()
	tutor := seedProfile(t, store, func(p *model.Profile) { p.Role = model.RoleTutor })
	svc := newPartnerService(store)

	inv, err := svc.CreateInvite(context.Background(), tutor.ID)
	require.NoError(t, err)

	// Self-redemption.
	_, err = svc.CompleteInvite(context.Background(), tutor.ID, inv.Code)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SELF_INVITE", appErr.Code)

	// Unknown code.
	other := seedProfile(t, store, nil)
	_, err = svc.CompleteInvite(context.Background(), other.ID, "nope")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_INVITE", appErr.Code)
}

func TestCompleteInvite_Expired(t *testing.T) {
	store := newMockStore()
	tutor := seedProfile(t, store, func(p *model.Profile) { p.Role = model.RoleTutor })
	student := seedProfile(t, store, nil)
	svc := newPartnerService(store)

	inv, err := svc.CreateInvite(context.Background(), tutor.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = svc.CompleteInvite(context.Background(), student.ID, inv.Code)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVITE_EXPIRED", appErr.Code)
}

func TestCreateInvite_RejectedWhenLinked(t *testing.T) {
	store := newMockStore()
	student, _ := linkedCouple(t, store)
	svc := newPartnerService(store)

	_, err := svc.CreateInvite(context.Background(), student.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ALREADY_LINKED", appErr.Code)
}

func TestDelink_ClearsBothSidesAndGrant(t *testing.T) {
	store := newMockStore()
	student, tutor := linkedCouple(t, store)

	// Simulate an inherited subscription grant.
	p, _ := store.GetProfile(context.Background(), student.ID)
	p.SubscriptionGrantedBy = tutor.ID
	require.NoError(t, store.UpdateProfile(context.Background(), p))

	svc := newPartnerService(store)
	require.NoError(t, svc.Delink(context.Background(), student.ID))

	gotStudent, _ := store.GetProfile(context.Background(), student.ID)
	gotTutor, _ := store.GetProfile(context.Background(), tutor.ID)
	assert.Empty(t, gotStudent.LinkedUserID)
	assert.Empty(t, gotStudent.SubscriptionGrantedBy)
	assert.Empty(t, gotTutor.LinkedUserID)

	// Delinking again is rejected.
	err := svc.Delink(context.Background(), student.ID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NO_PARTNER", appErr.Code)
}
