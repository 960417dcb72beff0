package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ZoomSession is a schedulable live class. Meeting credentials are provisioned
// once at creation time and never rewritten by edits.
type ZoomSession struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	StartTime   time.Time `gorm:"not null" json:"startTime"`
	EndTime     time.Time `gorm:"not null" json:"endTime"`

	// Flat legacy pricing: a single monthly price.
	Price float64 `gorm:"type:numeric(10,2);not null;default:0" json:"price"`

	// Two-stage pricing, used when CourseFeeEnabled is set.
	RegistrationFee  float64 `gorm:"type:numeric(10,2);not null;default:0" json:"registrationFee"`
	CourseFee        float64 `gorm:"type:numeric(10,2);not null;default:0" json:"courseFee"`
	CourseFeeEnabled bool    `gorm:"not null;default:false" json:"courseFeeEnabled"`
	RequiresApproval bool    `gorm:"not null;default:false" json:"requiresApproval"`

	IsActive       bool    `gorm:"not null;default:true" json:"isActive"`
	Capacity       *int    `json:"capacity"`
	RecurringClass bool    `gorm:"not null;default:false" json:"recurringClass"`
	ThumbnailURL   *string `gorm:"size:255" json:"thumbnailUrl"`

	HasModules        bool `gorm:"not null;default:false" json:"hasModules"`
	IsFirstModuleFree bool `gorm:"not null;default:false" json:"isFirstModuleFree"`

	// Never serialized directly; meeting details are only released through
	// the access-check responses.
	ZoomLink      string `gorm:"size:255" json:"-"`
	ZoomMeetingID string `gorm:"size:64" json:"-"`
	ZoomPassword  string `gorm:"size:64" json:"-"`

	CreatedByID uuid.UUID `gorm:"not null" json:"-"`
	CreatedBy   User      `gorm:"foreignkey:CreatedByID" json:"-"`

	Modules       []ClassModule      `gorm:"foreignkey:ZoomSessionID" json:"modules,omitempty"`
	Subscriptions []ZoomSubscription `gorm:"foreignkey:ZoomSessionID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *ZoomSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
