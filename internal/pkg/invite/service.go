package invite

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/tobiaslindner/billhive/app/models"
	"github.com/tobiaslindner/billhive/internal/pkg/team"
)

var (
	// ErrInvitationInvalid covers missing, expired, already-used and
	// wrong-owner tokens. The caller never learns which.
	ErrInvitationInvalid = errors.New("invitation invalid")

	// ErrDuplicateInvite signals a pending invitation or active membership
	// already exists for the owner/email pair.
	ErrDuplicateInvite = errors.New("invitation or membership already exists for this email")

	// ErrInvalidEmail signals a malformed address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// TeamSource is the slice of the membership service the state machine needs.
type TeamSource interface {
	FindActiveByUser(ctx context.Context, userID uint) (*models.TeamMember, error)
	FindActiveByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.TeamMember, error)
	CountSeats(ctx context.Context, ownerID uint) (current, max int, err error)
	AddMember(ctx context.Context, member *models.TeamMember) error
}

// Service drives the invitation lifecycle: pending → accepted, cancelled or
// expired, all terminal.
type Service struct {
	repo Repository
	team TeamSource
}

// NewService wires the invitation state machine.
func NewService(repo Repository, teamSource TeamSource) *Service {
	return &Service{repo: repo, team: teamSource}
}

// Invite creates a pending invitation for an email on the owner's team. The
// seat cap counts active members plus pending invitations against the plan's
// max_users; the final check runs inside the insert transaction with the
// owner's rows locked.
func (s *Service) Invite(ctx context.Context, ownerID uint, email, role string) (*models.Invitation, error) {
	if !models.ValidRole(role) {
		return nil, team.ErrInvalidRole
	}

	email = models.NormalizeEmail(email)
	if err := validator.New().Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.team.FindActiveByOwnerEmail(ctx, ownerID, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrDuplicateInvite
	}
	if pending, err := s.repo.FindPendingByOwnerEmail(ctx, ownerID, email); err != nil {
		return nil, err
	} else if pending != nil {
		return nil, ErrDuplicateInvite
	}

	_, maxSeats, err := s.team.CountSeats(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inv := &models.Invitation{
		OwnerID:   ownerID,
		Email:     email,
		Role:      role,
		Token:     token,
		Status:    models.InvitationStatusPending,
		ExpiresAt: now.Add(models.InvitationTTL),
	}
	if err := s.repo.CreateInvitationLocked(ctx, inv, maxSeats); err != nil {
		return nil, err
	}
	return inv, nil
}

// Accept redeems a token for userID. Idempotent: a user who already holds an
// active membership gets it back unchanged. A missing, non-pending or
// expired token fails with ErrInvitationInvalid; no fallback owner is ever
// substituted.
func (s *Service) Accept(ctx context.Context, token string, userID uint) (*models.TeamMember, error) {
	if existing, err := s.team.FindActiveByUser(ctx, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.IsTerminal() {
		return nil, ErrInvitationInvalid
	}
	if inv.IsExpired(time.Now()) {
		if expireErr := s.repo.MarkExpired(ctx, inv.ID); expireErr != nil {
			return nil, expireErr
		}
		return nil, ErrInvitationInvalid
	}

	member := &models.TeamMember{
		OwnerID:  inv.OwnerID,
		UserID:   userID,
		Email:    models.NormalizeEmail(inv.Email),
		Role:     inv.Role,
		Status:   models.MemberStatusActive,
		JoinedAt: time.Now(),
	}
	if err := s.repo.MarkAccepted(ctx, inv.ID, userID, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Cancel lets the owning user cancel their own pending invitation.
func (s *Service) Cancel(ctx context.Context, ownerID, invitationID uint) error {
	return s.repo.MarkCancelled(ctx, ownerID, invitationID)
}

// GetByToken returns the invitation behind a token without changing state,
// for the accept-page preview.
func (s *Service) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvitationInvalid
	}
	return inv, nil
}

// ListByOwner returns all invitations an owner has issued, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID uint) ([]models.Invitation, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ExpireStale expires every pending invitation past its window. Intended to
// run from the scheduler.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	return s.repo.ExpireStale(ctx, time.Now())
}

// RepairMembership re-derives a membership when the caller suspects drift.
// The owner comes from knownOwnerID or from the latest pending invitation
// for the email; with neither the repair resolves nothing. Safe to call
// repeatedly, and it never fabricates an owner.
func (s *Service) RepairMembership(ctx context.Context, userID uint, email string, knownOwnerID *uint) (*models.TeamMember, error) {
	if existing, err := s.team.FindActiveByUser(ctx, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	email = models.NormalizeEmail(email)

	inv, err := s.repo.LatestPendingByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if inv != nil && !inv.IsExpired(time.Now()) {
		member := &models.TeamMember{
			OwnerID:  inv.OwnerID,
			UserID:   userID,
			Email:    email,
			Role:     inv.Role,
			Status:   models.MemberStatusActive,
			JoinedAt: time.Now(),
		}
		if err := s.repo.MarkAccepted(ctx, inv.ID, userID, member); err != nil {
			return nil, err
		}
		log.Warnf("invite: repaired membership for user %d from invitation %d", userID, inv.ID)
		return member, nil
	}

	if knownOwnerID != nil && *knownOwnerID != 0 {
		// One active seat per (owner, email). If the email already holds a
		// seat under this owner the drift is not resolvable here.
		if taken, err := s.team.FindActiveByOwnerEmail(ctx, *knownOwnerID, email); err != nil {
			return nil, err
		} else if taken != nil {
			log.Warnf("invite: repair for user %d refused, email already holds an active seat under owner %d", userID, *knownOwnerID)
			return nil, nil
		}
		member := &models.TeamMember{
			OwnerID:  *knownOwnerID,
			UserID:   userID,
			Email:    email,
			Role:     models.RoleViewer,
			Status:   models.MemberStatusActive,
			JoinedAt: time.Now(),
		}
		if err := s.team.AddMember(ctx, member); err != nil {
			return nil, err
		}
		log.Warnf("invite: repaired membership for user %d under supplied owner %d", userID, *knownOwnerID)
		return member, nil
	}

	return nil, nil
}
