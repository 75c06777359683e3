package invite

import (
	"context"
	"errors"
	"time"

	"github.com/tobiaslindner/billhive/app/models"
	"github.com/tobiaslindner/billhive/internal/pkg/team"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists invitations, their audit actions, and the memberships
// acceptance creates. State transitions that race (double accept, capacity)
// are guarded inside transactions here, not in the service.
type Repository interface {
	CreateInvitationLocked(ctx context.Context, inv *models.Invitation, maxSeats int) error
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindPendingByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.Invitation, error)
	LatestPendingByEmail(ctx context.Context, email string) (*models.Invitation, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.Invitation, error)
	MarkAccepted(ctx context.Context, invitationID, userID uint, member *models.TeamMember) error
	MarkCancelled(ctx context.Context, ownerID, invitationID uint) error
	MarkExpired(ctx context.Context, invitationID uint) error
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an invitation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateInvitationLocked inserts a pending invitation after re-checking
// duplicates and the seat cap with the owner's roster and pending
// invitations locked. Two concurrent invites cannot both pass the cap.
func (r *gormRepository) CreateInvitationLocked(ctx context.Context, inv *models.Invitation, maxSeats int) error {
	email := models.NormalizeEmail(inv.Email)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members []models.TeamMember
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND status = ?", inv.OwnerID, models.MemberStatusActive).
			Find(&members).Error; err != nil {
			return err
		}

		var pending []models.Invitation
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND status = ?", inv.OwnerID, models.InvitationStatusPending).
			Find(&pending).Error; err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(members))
		for _, m := range members {
			key := models.NormalizeEmail(m.Email)
			if key == email {
				return ErrDuplicateInvite
			}
			seen[key] = struct{}{}
		}
		for _, p := range pending {
			if models.NormalizeEmail(p.Email) == email {
				return ErrDuplicateInvite
			}
		}

		if len(seen)+len(pending) >= maxSeats {
			return team.ErrCapacityExceeded
		}

		return tx.Create(inv).Error
	})
}

func (r *gormRepository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) FindPendingByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND LOWER(email) = ? AND status = ?", ownerID, models.NormalizeEmail(email), models.InvitationStatusPending).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) LatestPendingByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ? AND status = ?", models.NormalizeEmail(email), models.InvitationStatusPending).
		Order("created_at DESC, id DESC").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Invitation, error) {
	var invs []models.Invitation
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&invs).Error
	return invs, err
}

// MarkAccepted flips a pending invitation to accepted, creates the
// membership and appends the accept action in one transaction. The guarded
// update makes a second accept of the same token roll back cleanly.
func (r *gormRepository) MarkAccepted(ctx context.Context, invitationID, userID uint, member *models.TeamMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvitationInvalid
		}

		if err := tx.Create(member).Error; err != nil {
			return err
		}

		return tx.Create(&models.InvitationAction{
			InvitationID: invitationID,
			ActionType:   models.InvitationActionAccept,
			PerformedBy:  userID,
		}).Error
	})
}

// MarkCancelled cancels a pending invitation owned by ownerID and appends
// the cancel action.
func (r *gormRepository) MarkCancelled(ctx context.Context, ownerID, invitationID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND owner_id = ? AND status = ?", invitationID, ownerID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvitationInvalid
		}

		return tx.Create(&models.InvitationAction{
			InvitationID: invitationID,
			ActionType:   models.InvitationActionCancel,
			PerformedBy:  ownerID,
		}).Error
	})
}

// MarkExpired moves one pending invitation to expired with its audit action.
func (r *gormRepository) MarkExpired(ctx context.Context, invitationID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationStatusPending).
			Update("status", models.InvitationStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.Create(&models.InvitationAction{
			InvitationID: invitationID,
			ActionType:   models.InvitationActionExpire,
		}).Error
	})
}

// ExpireStale expires every pending invitation past its window and returns
// how many were flipped.
func (r *gormRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []models.Invitation
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND expires_at < ?", models.InvitationStatusPending, now).
			Find(&stale).Error; err != nil {
			return err
		}

		for _, inv := range stale {
			res := tx.Model(&models.Invitation{}).
				Where("id = ? AND status = ?", inv.ID, models.InvitationStatusPending).
				Update("status", models.InvitationStatusExpired)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := tx.Create(&models.InvitationAction{
				InvitationID: inv.ID,
				ActionType:   models.InvitationActionExpire,
			}).Error; err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}
