package service

import (
	"context"
	"fmt"

	"pickupmap/internal/models"
)

// FriendGraph answers friendship questions for the FRIENDS tier.
type FriendGraph interface {
	IsAcceptedFriend(ctx context.Context, a, b string) (bool, error)
}

// InvitationStore answers invitation questions for the INVITE_ONLY tier.
type InvitationStore interface {
	HasInvite(ctx context.Context, gameID, userID string) (bool, error)
}

// AdmissionPolicy decides whether a non-creator may join a game of one
// visibility tier.
type AdmissionPolicy interface {
	Admit(ctx context.Context, game *models.Game, userID string) (bool, error)
}

type publicPolicy struct{}

func (publicPolicy) Admit(context.Context, *models.Game, string) (bool, error) {
	return true, nil
}

type friendsPolicy struct {
	friends FriendGraph
}

func (p friendsPolicy) Admit(ctx context.Context, game *models.Game, userID string) (bool, error) {
	return p.friends.IsAcceptedFriend(ctx, game.CreatorID, userID)
}

type inviteOnlyPolicy struct {
	invitations InvitationStore
}

func (p inviteOnlyPolicy) Admit(ctx context.Context, game *models.Game, userID string) (bool, error) {
	return p.invitations.HasInvite(ctx, game.ID, userID)
}

// VisibilityGate authorizes join requests. It never mutates state.
type VisibilityGate struct {
	policies map[models.Visibility]AdmissionPolicy
}

// NewVisibilityGate creates a gate with one policy per visibility tier
func NewVisibilityGate(friends FriendGraph, invitations InvitationStore) *VisibilityGate {
	return &VisibilityGate{
		policies: map[models.Visibility]AdmissionPolicy{
			models.VisibilityPublic:     publicPolicy{},
			models.VisibilityFriends:    friendsPolicy{friends: friends},
			models.VisibilityInviteOnly: inviteOnlyPolicy{invitations: invitations},
		},
	}
}

// Authorize returns nil when userID may join game, ErrUnauthenticated for an
// anonymous caller and ErrForbidden when the tier rejects the caller. The
// creator passes every tier. Unknown tiers are rejected.
func (g *VisibilityGate) Authorize(ctx context.Context, game *models.Game, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if userID == game.CreatorID {
		return nil
	}

	policy, ok := g.policies[game.Visibility]
	if !ok {
		return ErrForbidden
	}
	allowed, err := policy.Admit(ctx, game, userID)
	if err != nil {
		return fmt.Errorf("failed to check %s visibility: %w", game.Visibility, err)
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}
