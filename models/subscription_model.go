package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive          = "ACTIVE"
	SubscriptionStatusPendingApproval = "PENDING_APPROVAL"
	SubscriptionStatusRegistered      = "REGISTERED"
	SubscriptionStatusCancelled       = "CANCELLED"
	SubscriptionStatusExpired         = "EXPIRED"
	SubscriptionStatusRejected        = "REJECTED"
)

// ZoomSubscription is the one row per (user, session) pair recording
// registration, approval and link-access progress. The unique index is what
// the duplicate-insert recovery path in the entitlement service relies on.
type ZoomSubscription struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID  `gorm:"not null;uniqueIndex:idx_user_zoom_session" json:"userId"`
	ZoomSessionID uuid.UUID  `gorm:"not null;uniqueIndex:idx_user_zoom_session" json:"zoomSessionId"`
	ModuleID      *uuid.UUID `json:"moduleId"`

	Status           string `gorm:"size:20;not null;default:'PENDING_APPROVAL'" json:"status"`
	IsRegistered     bool   `gorm:"not null;default:false" json:"isRegistered"`
	IsApproved       bool   `gorm:"not null;default:false" json:"isApproved"`
	HasAccessToLinks bool   `gorm:"not null;default:false" json:"hasAccessToLinks"`

	StartDate       *time.Time `json:"startDate"`
	EndDate         *time.Time `json:"endDate"`
	NextPaymentDate *time.Time `json:"nextPaymentDate"`

	RegistrationPaymentID *uuid.UUID `json:"registrationPaymentId"`

	User        User          `gorm:"foreignkey:UserID" json:"user,omitempty"`
	ZoomSession ZoomSession   `gorm:"foreignkey:ZoomSessionID" json:"zoomSession,omitempty"`
	Payments    []ZoomPayment `gorm:"foreignkey:SubscriptionID" json:"payments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *ZoomSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
