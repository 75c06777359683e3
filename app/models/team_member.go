package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleEditor  = "editor"
	RoleViewer  = "viewer"
)

const (
	MemberStatusActive  = "active"
	MemberStatusRemoved = "removed"
)

// ValidRole reports whether r is one of the four team roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// RoleRank orders roles by privilege. Manager sits between admin and editor
// as its own tier.
func RoleRank(r string) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleEditor:
		return 1
	default:
		return 0
	}
}

// NormalizeEmail lower-cases and trims an address. All email comparisons in
// the engine go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TeamMember is one seat on an owner's team. The owner is never stored; the
// roster synthesizes an admin entry for them. Removed rows stay for history.
type TeamMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index:idx_team_members_owner_status,priority:1" json:"owner_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Email     string    `gorm:"type:varchar(200);not null;index" json:"email" validate:"required,email"`
	Role      string    `gorm:"type:varchar(20);not null;default:'viewer'" json:"role" validate:"oneof=admin manager editor viewer"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active';index:idx_team_members_owner_status,priority:2" json:"status" validate:"oneof=active removed"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *TeamMember) Validate() error {
	v := validator.New()

	return v.Struct(m)
}
