package subscription

import (
	"context"
	"errors"

	"github.com/tobiaslindner/billhive/app/models"
	"gorm.io/gorm"
)

// PlanChangeParams is everything ApplyPlanChange writes in one transaction.
type PlanChangeParams struct {
	UserID            uint
	OldSubscriptionID uint
	NewSubscription   models.Subscription
	NewBalance        int
	LedgerEntry       models.Transaction
	Audit             models.PlanChange
}

// Repository persists subscriptions and plan-change audit rows.
type Repository interface {
	ListActive(ctx context.Context, userID uint) ([]models.Subscription, error)
	Deactivate(ctx context.Context, subscriptionID uint) error
	ApplyPlanChange(ctx context.Context, params *PlanChangeParams) (*models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListActive(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_date DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// Deactivate is idempotent: deactivating an already-inactive subscription is
// a no-op.
func (r *gormRepository) Deactivate(ctx context.Context, subscriptionID uint) error {
	return deactivate(r.db.WithContext(ctx), subscriptionID)
}

func deactivate(db *gorm.DB, subscriptionID uint) error {
	return db.Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", subscriptionID, true).
		Update("is_active", false).Error
}

// ApplyPlanChange deactivates the old subscription, activates the new one,
// resets the credit balance and appends both audit rows as one atomic unit.
// Any failure rolls the whole change back.
func (r *gormRepository) ApplyPlanChange(ctx context.Context, params *PlanChangeParams) (*models.Subscription, error) {
	newSub := params.NewSubscription

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if params.OldSubscriptionID != 0 {
			if err := deactivate(tx, params.OldSubscriptionID); err != nil {
				return err
			}
		}

		if err := tx.Create(&newSub).Error; err != nil {
			return err
		}

		if err := resetBalance(tx, params.UserID, params.NewBalance); err != nil {
			return err
		}

		entry := params.LedgerEntry
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		audit := params.Audit
		audit.NewSubscriptionID = newSub.ID
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, err
	}
	return &newSub, nil
}

func resetBalance(tx *gorm.DB, userID uint, value int) error {
	var row models.CreditBalance
	if err := tx.Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.CreditBalance{UserID: userID, Balance: value}).Error
		}
		return err
	}
	return tx.Model(&models.CreditBalance{}).
		Where("user_id = ?", userID).
		Update("balance", value).Error
}
