package team

import (
	"context"
	"errors"

	"github.com/tobiaslindner/billhive/app/models"
	"gorm.io/gorm"
)

// Repository provides membership roster persistence.
type Repository interface {
	ListActiveMembers(ctx context.Context, ownerID uint) ([]models.TeamMember, error)
	CountDistinctActiveEmails(ctx context.Context, ownerID uint) (int, error)
	FindActiveByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.TeamMember, error)
	FindActiveByUser(ctx context.Context, userID uint) (*models.TeamMember, error)
	FindByID(ctx context.Context, ownerID, memberID uint) (*models.TeamMember, error)
	Create(ctx context.Context, member *models.TeamMember) error
	UpdateStatus(ctx context.Context, memberID uint, status string) error
	UpdateRole(ctx context.Context, memberID uint, role string) error
	GetOwner(ctx context.Context, ownerID uint) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a membership repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListActiveMembers(ctx context.Context, ownerID uint) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.MemberStatusActive).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

func (r *gormRepository) CountDistinctActiveEmails(ctx context.Context, ownerID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("owner_id = ? AND status = ?", ownerID, models.MemberStatusActive).
		Distinct("LOWER(email)").
		Count(&count).Error
	return int(count), err
}

func (r *gormRepository) FindActiveByOwnerEmail(ctx context.Context, ownerID uint, email string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND LOWER(email) = ? AND status = ?", ownerID, models.NormalizeEmail(email), models.MemberStatusActive).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) FindActiveByUser(ctx context.Context, userID uint) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.MemberStatusActive).
		Order("joined_at DESC, id DESC").
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) FindByID(ctx context.Context, ownerID, memberID uint) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", memberID, ownerID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *gormRepository) Create(ctx context.Context, member *models.TeamMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *gormRepository) UpdateStatus(ctx context.Context, memberID uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("id = ?", memberID).
		Update("status", status).Error
}

func (r *gormRepository) UpdateRole(ctx context.Context, memberID uint, role string) error {
	return r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("id = ?", memberID).
		Update("role", role).Error
}

func (r *gormRepository) GetOwner(ctx context.Context, ownerID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
