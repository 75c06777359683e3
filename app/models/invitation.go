package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	InvitationStatusPending   = "pending"
	InvitationStatusAccepted  = "accepted"
	InvitationStatusCancelled = "cancelled"
	InvitationStatusExpired   = "expired"
)

// InvitationTTL is how long a pending invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a single-use, time-limited offer of a role on an owner's
// team. Accepted, cancelled and expired are terminal.
type Invitation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index:idx_invitations_owner_status,priority:1" json:"owner_id"`
	Email     string    `gorm:"type:varchar(200);not null;index" json:"email" validate:"required,email"`
	Role      string    `gorm:"type:varchar(20);not null;default:'viewer'" json:"role" validate:"oneof=admin manager editor viewer"`
	Token     string    `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending';index:idx_invitations_owner_status,priority:2" json:"status"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invitation) Validate() error {
	v := validator.New()

	return v.Struct(i)
}

// IsExpired reports whether the invitation window has passed.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// IsTerminal reports whether the invitation has left the pending state.
func (i *Invitation) IsTerminal() bool {
	return i.Status != InvitationStatusPending
}
