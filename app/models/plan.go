package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Plan is immutable reference data describing a purchasable subscription tier.
// Rows are managed by catalog tooling; the engine only reads them.
type Plan struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Level        int             `gorm:"not null;default:0;index" json:"level" validate:"min=0"`
	CategoryID   uint            `gorm:"not null;default:0;index" json:"category_id"`
	PeriodMonths int             `gorm:"not null;default:1" json:"period_months" validate:"min=0"`
	CreditAmount int             `gorm:"not null;default:0" json:"credit_amount" validate:"min=0"`
	PriceAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_amount"`
	MaxUsers     int             `gorm:"not null;default:1" json:"max_users" validate:"min=1"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// MaxSeats returns the seat cap including the owner, never below one.
func (p *Plan) MaxSeats() int {
	if p.MaxUsers < 1 {
		return 1
	}
	return p.MaxUsers
}

// PeriodDays converts the plan term to days using the fixed 30-day month
// approximation used everywhere in proration.
func (p *Plan) PeriodDays() int {
	return p.PeriodMonths * 30
}
