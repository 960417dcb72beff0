package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"gorm.io/gorm"
)

type MeetingDetails struct {
	Link      string `json:"link"`
	Password  string `json:"password"`
	MeetingID string `json:"meetingId"`
}

// AccessState is the single authoritative answer to "what may this user do
// with this session right now". Every join-flow and rendering decision is
// made from one of these, never from flags reassembled client-side.
type AccessState struct {
	IsSubscribed     bool                     `json:"isSubscribed"`
	IsRegistered     bool                     `json:"isRegistered"`
	IsPending        bool                     `json:"isPending"`
	IsApproved       bool                     `json:"isApproved"`
	HasAccessToLinks bool                     `json:"hasAccessToLinks"`
	Subscription     *models.ZoomSubscription `json:"subscription,omitempty"`
	MeetingDetails   *MeetingDetails          `json:"meetingDetails,omitempty"`
}

// ComputeAccess derives the caller's entitlement for a session (optionally a
// module of it). Meeting details are attached only in the full-access case,
// with the single exception of free modules, which any authenticated user may
// join without a registration.
func ComputeAccess(userID, sessionID uuid.UUID, moduleID *uuid.UUID) (*AccessState, error) {
	var session models.ZoomSession
	if err := database.DB.Preload("Modules").First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var module *models.ClassModule
	if moduleID != nil {
		module = findModule(&session, *moduleID)
		if module == nil {
			return nil, ErrModuleNotFound
		}
	}

	state := &AccessState{}

	if module != nil && module.IsFree {
		state.HasAccessToLinks = true
		state.MeetingDetails = meetingDetailsFor(&session, module)
		return state, nil
	}

	var sub models.ZoomSubscription
	err := database.DB.Where("user_id = ? AND zoom_session_id = ?", userID, sessionID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	state.Subscription = &sub

	switch sub.Status {
	case models.SubscriptionStatusPendingApproval:
		state.IsRegistered = sub.IsRegistered
		state.IsPending = true
	case models.SubscriptionStatusActive:
		state.IsRegistered = sub.IsRegistered
		state.IsApproved = sub.IsApproved
		if session.CourseFeeEnabled {
			state.IsSubscribed = true
			state.HasAccessToLinks = sub.HasAccessToLinks
		} else if sub.EndDate == nil || !sub.EndDate.Before(time.Now()) {
			// Flat monthly model: the subscription window must still be open.
			state.IsSubscribed = true
			state.HasAccessToLinks = sub.HasAccessToLinks
		}
		if state.HasAccessToLinks {
			state.MeetingDetails = meetingDetailsFor(&session, module)
		}
	}
	// CANCELLED, EXPIRED and REJECTED rows grant nothing.

	return state, nil
}

func meetingDetailsFor(session *models.ZoomSession, module *models.ClassModule) *MeetingDetails {
	if module != nil && module.ZoomLink != "" {
		return &MeetingDetails{
			Link:      module.ZoomLink,
			Password:  module.ZoomPassword,
			MeetingID: module.ZoomMeetingID,
		}
	}
	return &MeetingDetails{
		Link:      session.ZoomLink,
		Password:  session.ZoomPassword,
		MeetingID: session.ZoomMeetingID,
	}
}
