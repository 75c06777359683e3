package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionMethodSubscription = "subscription"
	TransactionMethodTransferOut  = "transfer_out"
	TransactionMethodTransferIn   = "transfer_in"
	TransactionMethodUsage        = "usage"
)

const (
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is an append-only ledger row and the sole audit trail for
// balance changes. Amount is the money side (may be zero), Credits the signed
// credit delta.
type Transaction struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TransactionID string          `gorm:"type:char(36);uniqueIndex;not null" json:"transaction_id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Credits       int             `gorm:"not null;default:0" json:"credits"`
	Method        string          `gorm:"type:varchar(32);not null" json:"method"`
	Status        string          `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	Details       datatypes.JSON  `gorm:"type:json" json:"details,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}
