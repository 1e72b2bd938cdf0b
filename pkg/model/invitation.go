package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const InvitationsTable = "invitations"

type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusExpired  InvitationStatus = "expired"
	StatusRevoked  InvitationStatus = "revoked"
)

// Invitation is a row of the invitations table. At most one pending invitation
// may exist for a (project_id, email) pair.
type Invitation struct {
	ID        string           `gorm:"primaryKey" json:"id,omitempty"`
	Email     string           `gorm:"not null;uniqueIndex:idx_invitations_pending,where:status = 'pending'" json:"email"`
	ProjectID string           `gorm:"not null;uniqueIndex:idx_invitations_pending,where:status = 'pending'" json:"project_id"`
	Role      Role             `gorm:"not null" json:"role"`
	InvitedBy string           `gorm:"not null" json:"invited_by"`
	Status    InvitationStatus `gorm:"not null;index" json:"status"`
	Token     string           `gorm:"not null;uniqueIndex" json:"token"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Invitation) TableName() string {
	return InvitationsTable
}

func (i *Invitation) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}

	return nil
}

func (i *Invitation) IsPending() bool {
	return i != nil && i.Status == StatusPending
}

func NewPendingInvitation(projectID, email string, role Role, invitedBy, token string, now time.Time) *Invitation {
	return &Invitation{
		Email:     email,
		ProjectID: projectID,
		Role:      role,
		InvitedBy: invitedBy,
		Status:    StatusPending,
		Token:     token,
		CreatedAt: now.UTC(),
	}
}
