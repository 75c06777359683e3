package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	InvitationActionAccept = "accept"
	InvitationActionCancel = "cancel"
	InvitationActionExpire = "expire"
)

// InvitationAction is an append-only audit row recording who moved an
// invitation out of pending, and how.
type InvitationAction struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	InvitationID uint           `gorm:"not null;index" json:"invitation_id"`
	ActionType   string         `gorm:"type:varchar(20);not null" json:"action_type"`
	PerformedBy  uint           `gorm:"not null;default:0" json:"performed_by"`
	Details      datatypes.JSON `gorm:"type:json" json:"details,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
