package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// inviteTTL is how long an invite code stays redeemable.
const inviteTTL = 7 * 24 * time.Hour

// PartnerService links and delinks couples via invite codes.
type PartnerService struct {
	invites  repository.InviteRepository
	profiles repository.ProfileRepository
	access   *AccessService
	logger   *slog.Logger
	now      func() time.Time
}

func NewPartnerService(
	invites repository.InviteRepository,
	profiles repository.ProfileRepository,
	access *AccessService,
	logger *slog.Logger,
) *PartnerService {
	return &PartnerService{
		invites:  invites,
		profiles: profiles,
		access:   access,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateInvite generates a single-use code the partner redeems to link.
// The redeemer takes the opposite role of the inviter.
func (s *PartnerService) CreateInvite(ctx context.Context, userID string) (*model.Invite, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.LinkedUserID != "" {
		return nil, apperror.Rejected("ALREADY_LINKED", "You are already linked with a partner")
	}

	if _, err := s.access.CheckRateLimit(ctx, p, UsageInvites); err != nil {
		return nil, err
	}

	partnerRole := model.RoleTutor
	if p.Role == model.RoleTutor {
		partnerRole = model.RoleStudent
	}

	inv := &model.Invite{
		Code:      uuid.NewString(),
		InviterID: userID,
		Role:      partnerRole,
	}
	if err := s.invites.CreateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invite: %w", err)
	}

	s.access.RecordUsage(userID, UsageInvites, 1)
	s.logger.Info("invite created", slog.String("inviter_id", userID))
	return inv, nil
}

// CompleteInvite redeems a code, linking redeemer and inviter and assigning
// the redeemer the invite's role.
func (s *PartnerService) CompleteInvite(ctx context.Context, redeemerID, code string) (*model.Profile, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "invite code is required")
	}

	inv, err := s.invites.GetInvite(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Rejected("INVALID_INVITE", "That invite code is not valid")
		}
		return nil, err
	}
	if inv.UsedBy != "" {
		return nil, apperror.Rejected("INVITE_USED", "That invite was already redeemed")
	}
	if s.now().Sub(inv.CreatedAt) > inviteTTL {
		return nil, apperror.Rejected("INVITE_EXPIRED", "That invite has expired")
	}
	if inv.InviterID == redeemerID {
		return nil, apperror.Rejected("SELF_INVITE", "You cannot redeem your own invite")
	}

	redeemer, err := s.profiles.GetProfile(ctx, redeemerID)
	if err != nil {
		return nil, err
	}
	if redeemer.LinkedUserID != "" {
		return nil, apperror.Rejected("ALREADY_LINKED", "You are already linked with a partner")
	}
	inviter, err := s.profiles.GetProfile(ctx, inv.InviterID)
	if err != nil {
		return nil, err
	}
	if inviter.LinkedUserID != "" {
		return nil, apperror.Rejected("INVITER_LINKED", "The inviter is already linked with someone else")
	}

	// Claim the code first so a concurrent redeem loses cleanly.
	if err := s.invites.MarkInviteUsed(ctx, code, redeemerID, s.now()); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Rejected("INVITE_USED", "That invite was already redeemed")
		}
		return nil, err
	}

	if redeemer.Role != inv.Role {
		redeemer.Role = inv.Role
		if err := s.profiles.UpdateProfile(ctx, redeemer); err != nil {
			return nil, fmt.Errorf("assigning role: %w", err)
		}
	}

	if err := s.profiles.LinkProfiles(ctx, redeemerID, inv.InviterID); err != nil {
		return nil, fmt.Errorf("linking profiles: %w", err)
	}

	s.logger.Info("couple linked",
		slog.String("inviter_id", inv.InviterID),
		slog.String("redeemer_id", redeemerID),
	)
	return s.profiles.GetProfile(ctx, redeemerID)
}

// Delink disconnects the couple and clears any inherited subscription grant
// on both sides.
func (s *PartnerService) Delink(ctx context.Context, userID string) error {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if p.LinkedUserID == "" {
		return apperror.Rejected("NO_PARTNER", "You are not linked with a partner")
	}

	if err := s.profiles.DelinkProfiles(ctx, userID, p.LinkedUserID); err != nil {
		return fmt.Errorf("delinking profiles: %w", err)
	}

	s.logger.Info("couple delinked",
		slog.String("user_id", userID),
		slog.String("partner_id", p.LinkedUserID),
	)
	return nil
}
