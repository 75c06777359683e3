package credits

import (
	"context"

	"github.com/tobiaslindner/billhive/app/models"
	"gorm.io/gorm"
)

// AdjustMode selects how Adjust applies its value.
type AdjustMode int

const (
	// AdjustAdd applies a signed delta and enforces the non-negative
	// invariant.
	AdjustAdd AdjustMode = iota
	// AdjustReset sets the balance outright. Only plan activation paths use
	// it, never user-initiated debits.
	AdjustReset
)

// Service is the credit account: balance reads and guarded mutations.
type Service struct {
	repo Repository
}

// NewService creates a credit account service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a credit account service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetBalance returns the user's current credit balance, creating the zero
// row on first touch.
func (s *Service) GetBalance(ctx context.Context, userID uint) (int, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Adjust mutates the balance. AdjustAdd applies delta and fails with
// ErrInsufficientCredits when the result would be negative; AdjustReset sets
// the balance to delta unconditionally.
func (s *Service) Adjust(ctx context.Context, userID uint, delta int, mode AdjustMode) error {
	switch mode {
	case AdjustReset:
		if delta < 0 {
			return ErrInvalidAmount
		}
		return s.repo.ResetBalance(ctx, userID, delta)
	default:
		return s.repo.AddBalance(ctx, userID, delta)
	}
}

// ListTransactions returns the newest ledger rows for a user.
func (s *Service) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit)
}
