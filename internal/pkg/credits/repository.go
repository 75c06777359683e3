package credits

import (
	"context"
	"errors"

	"github.com/tobiaslindner/billhive/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides balance and ledger operations. Every mutation that
// checks a precondition does so atomically: conditional updates or row locks,
// never read-then-write across statements.
type Repository interface {
	GetBalance(ctx context.Context, userID uint) (int, error)
	AddBalance(ctx context.Context, userID uint, delta int) error
	ResetBalance(ctx context.Context, userID uint, value int) error
	Transfer(ctx context.Context, fromUserID, toUserID uint, amount int, outgoing, incoming *models.Transaction) error
	Debit(ctx context.Context, userID uint, amount int, record *models.Transaction) error
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(ctx context.Context, userID uint) (int, error) {
	row, err := getOrCreateBalance(r.db.WithContext(ctx), userID)
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}

// getOrCreateBalance returns the balance row for a user, creating the zero
// row on first touch.
func getOrCreateBalance(db *gorm.DB, userID uint) (*models.CreditBalance, error) {
	var row models.CreditBalance
	if err := db.Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.CreditBalance{UserID: userID, Balance: 0}
			if createErr := db.Create(&row).Error; createErr != nil {
				return nil, createErr
			}
			return &row, nil
		}
		return nil, err
	}
	return &row, nil
}

// addBalance applies a signed delta. Negative deltas use a conditional update
// so the non-negative invariant holds even under concurrent debits. A zero
// delta is a no-op: MySQL reports zero changed rows for value-preserving
// updates, which must not read as an insufficient balance.
func addBalance(db *gorm.DB, userID uint, delta int) error {
	if _, err := getOrCreateBalance(db, userID); err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	q := db.Model(&models.CreditBalance{}).Where("user_id = ?", userID)
	if delta < 0 {
		q = q.Where("balance >= ?", -delta)
	}
	res := q.Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if delta < 0 && res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

func (r *gormRepository) AddBalance(ctx context.Context, userID uint, delta int) error {
	return addBalance(r.db.WithContext(ctx), userID, delta)
}

func (r *gormRepository) ResetBalance(ctx context.Context, userID uint, value int) error {
	return resetBalance(r.db.WithContext(ctx), userID, value)
}

func resetBalance(db *gorm.DB, userID uint, value int) error {
	if _, err := getOrCreateBalance(db, userID); err != nil {
		return err
	}
	return db.Model(&models.CreditBalance{}).
		Where("user_id = ?", userID).
		Update("balance", value).Error
}

// Transfer moves credits between two users and appends both ledger rows in a
// single transaction. The sender row is debited conditionally; zero rows
// affected means the balance check lost a race and everything rolls back.
func (r *gormRepository) Transfer(ctx context.Context, fromUserID, toUserID uint, amount int, outgoing, incoming *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOrCreateBalance(tx, fromUserID); err != nil {
			return err
		}
		res := tx.Model(&models.CreditBalance{}).
			Where("user_id = ? AND balance >= ?", fromUserID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredits
		}

		if _, err := getOrCreateBalance(tx, toUserID); err != nil {
			return err
		}
		if err := tx.Model(&models.CreditBalance{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", toUserID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}

		if err := tx.Create(outgoing).Error; err != nil {
			return err
		}
		return tx.Create(incoming).Error
	})
}

// Debit removes credits and appends the ledger row in one transaction.
func (r *gormRepository) Debit(ctx context.Context, userID uint, amount int, record *models.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := addBalance(tx, userID, -amount); err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (r *gormRepository) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
