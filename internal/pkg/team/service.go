package team

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tobiaslindner/billhive/app/models"
)

var (
	// ErrCapacityExceeded signals that the owner's plan seat cap is already
	// filled by active members plus pending invitations.
	ErrCapacityExceeded = errors.New("team seat capacity exceeded")

	// ErrInvalidRole signals a role outside admin/manager/editor/viewer.
	ErrInvalidRole = errors.New("invalid team role")

	// ErrMemberNotFound signals a member id that does not belong to the
	// owner.
	ErrMemberNotFound = errors.New("team member not found")
)

// PlanSource resolves the owner's active plan, which carries the seat cap.
type PlanSource interface {
	ActivePlan(ctx context.Context, userID uint) (*models.Plan, error)
}

// Service is the membership roster: listing, seat accounting, role and
// status changes.
type Service struct {
	repo  Repository
	plans PlanSource
}

// NewService wires the membership service.
func NewService(repo Repository, plans PlanSource) *Service {
	return &Service{repo: repo, plans: plans}
}

// ListMembers returns the owner's active roster, deduplicated by lower-cased
// email, with the owner synthesized as the first entry when not already
// present.
func (s *Service) ListMembers(ctx context.Context, ownerID uint) ([]models.TeamMember, error) {
	members, err := s.repo.ListActiveMembers(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]models.TeamMember, 0, len(members)+1)
	seen := make(map[string]struct{}, len(members)+1)

	ownerEmail := ""
	if owner, ownerErr := s.repo.GetOwner(ctx, ownerID); ownerErr != nil {
		log.Warnf("team: owner %d lookup failed, listing roster without owner email: %v", ownerID, ownerErr)
	} else if owner != nil {
		ownerEmail = models.NormalizeEmail(owner.Email)
	}

	ownerListed := false
	for _, m := range members {
		if m.UserID == ownerID {
			ownerListed = true
		}
	}
	if !ownerListed {
		out = append(out, models.TeamMember{
			OwnerID:  ownerID,
			UserID:   ownerID,
			Email:    ownerEmail,
			Role:     models.RoleAdmin,
			Status:   models.MemberStatusActive,
			JoinedAt: time.Time{},
		})
		if ownerEmail != "" {
			seen[ownerEmail] = struct{}{}
		}
	}

	for _, m := range members {
		key := models.NormalizeEmail(m.Email)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// CountSeats returns the seats in use (distinct active member emails plus
// the owner) and the cap from the owner's active plan, never below one.
func (s *Service) CountSeats(ctx context.Context, ownerID uint) (current, max int, err error) {
	distinct, err := s.repo.CountDistinctActiveEmails(ctx, ownerID)
	if err != nil {
		return 0, 0, err
	}
	current = distinct + 1

	plan, err := s.plans.ActivePlan(ctx, ownerID)
	if err != nil {
		return 0, 0, err
	}
	max = 1
	if plan != nil {
		max = plan.MaxSeats()
	}
	return current, max, nil
}

// RemoveMember marks a seat removed, keeping the row for history.
func (s *Service) RemoveMember(ctx context.Context, ownerID, memberID uint) error {
	member, err := s.repo.FindByID(ctx, ownerID, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	if member.Status == models.MemberStatusRemoved {
		return nil
	}
	return s.repo.UpdateStatus(ctx, memberID, models.MemberStatusRemoved)
}

// ChangeRole sets a member's role; anything outside the four roles is
// rejected without touching the row.
func (s *Service) ChangeRole(ctx context.Context, ownerID, memberID uint, newRole string) error {
	if !models.ValidRole(newRole) {
		return ErrInvalidRole
	}
	member, err := s.repo.FindByID(ctx, ownerID, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	return s.repo.UpdateRole(ctx, memberID, newRole)
}

// AddMember validates and stores a new active membership row. Invitation
// acceptance writes its row inside the acceptance transaction; this path
// serves membership repair.
func (s *Service) AddMember(ctx context.Context, member *models.TeamMember) error {
	member.Email = models.NormalizeEmail(member.Email)
	if member.Status == "" {
		member.Status = models.MemberStatusActive
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	if err := member.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, member)
}

// IsActiveMember implements the checker used by the transfer engine.
func (s *Service) IsActiveMember(ctx context.Context, ownerID, userID uint) (bool, string, error) {
	members, err := s.repo.ListActiveMembers(ctx, ownerID)
	if err != nil {
		return false, "", err
	}
	for _, m := range members {
		if m.UserID == userID {
			return true, m.Role, nil
		}
	}
	return false, "", nil
}

// FindActiveByUser returns the user's active membership anywhere, or nil.
func (s *Service) FindActiveByUser(ctx context.Context, userID uint) (*models.TeamMember, error) {
	return s.repo.FindActiveByUser(ctx, userID)
}

// FindActiveByOwnerEmail returns the active membership for an owner/email
// pair, or nil.
func (s *Service) FindActiveByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.TeamMember, error) {
	return s.repo.FindActiveByOwnerEmail(ctx, ownerID, email)
}
