package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClassModule is a sub-unit of a modular ZoomSession with its own schedule.
// A module may carry its own meeting credentials; when it doesn't, the parent
// session's credentials apply.
type ClassModule struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ZoomSessionID uuid.UUID `gorm:"not null;index" json:"zoomSessionId"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	StartTime     time.Time `gorm:"not null" json:"startTime"`
	EndTime       time.Time `gorm:"not null" json:"endTime"`
	Position      int       `gorm:"not null;default:0" json:"position"`
	IsFree        bool      `gorm:"not null;default:false" json:"isFree"`

	ZoomLink      string `gorm:"size:255" json:"-"`
	ZoomMeetingID string `gorm:"size:64" json:"-"`
	ZoomPassword  string `gorm:"size:64" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *ClassModule) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
