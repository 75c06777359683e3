package models

import (
	"time"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
	PaymentStatusFailed  = "failed"
)

// Subscription is a user's time-bounded activation of a plan. At most one row
// per user carries is_active = true; replaced rows are deactivated, never
// deleted.
type Subscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_subscriptions_user_active,priority:1" json:"user_id"`
	PlanID        uint      `gorm:"not null;index" json:"plan_id"`
	StartDate     time.Time `gorm:"not null" json:"start_date"`
	EndDate       time.Time `gorm:"not null" json:"end_date"`
	IsActive      bool      `gorm:"not null;default:true;index:idx_subscriptions_user_active,priority:2" json:"is_active"`
	PaymentStatus string    `gorm:"type:varchar(20);not null;default:'paid'" json:"payment_status"`
	TransactionID string    `gorm:"type:char(36);index" json:"transaction_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RemainingDays returns whole days until the subscription end, floored at zero.
func (s *Subscription) RemainingDays(now time.Time) int {
	if s.EndDate.Before(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}
