package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanChange is an append-only audit row linking the subscription replaced by
// an upgrade to its successor, the gateway transaction that paid for it, and
// the credit reset that was applied.
type PlanChange struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	OldSubscriptionID uint            `gorm:"not null" json:"old_subscription_id"`
	NewSubscriptionID uint            `gorm:"not null" json:"new_subscription_id"`
	TransactionID     string          `gorm:"type:char(36);not null" json:"transaction_id"`
	ProratedValue     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"prorated_value"`
	CreditsSet        int             `gorm:"not null;default:0" json:"credits_set"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
