package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/meetings"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/services"
	"gorm.io/gorm"
)

type ModuleInput struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	Position    int       `json:"position"`
	IsFree      bool      `json:"isFree"`
	OwnMeeting  bool      `json:"ownMeeting"`
}

type CreateSessionRequest struct {
	Title             string        `json:"title" validate:"required"`
	Description       string        `json:"description"`
	StartTime         time.Time     `json:"startTime" validate:"required"`
	EndTime           time.Time     `json:"endTime" validate:"required"`
	Price             float64       `json:"price" validate:"gte=0"`
	RegistrationFee   float64       `json:"registrationFee" validate:"gte=0"`
	CourseFee         float64       `json:"courseFee" validate:"gte=0"`
	CourseFeeEnabled  bool          `json:"courseFeeEnabled"`
	RequiresApproval  bool          `json:"requiresApproval"`
	Capacity          *int          `json:"capacity"`
	RecurringClass    bool          `json:"recurringClass"`
	ThumbnailURL      *string       `json:"thumbnailUrl"`
	IsFirstModuleFree bool          `json:"isFirstModuleFree"`
	Modules           []ModuleInput `json:"modules" validate:"dive"`
}

// CreateZoomSession provisions the meeting (once, here) and persists the
// session with its modules. A thumbnail already uploaded for a request that
// then fails is cleaned up best-effort.
func CreateZoomSession(c *fiber.Ctx) error {
	adminID := currentUserID(c)

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if !req.EndTime.After(req.StartTime) {
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
	}
	for _, m := range req.Modules {
		if !m.EndTime.After(m.StartTime) {
			cleanupThumbnail(req.ThumbnailURL)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Module end time must be after start time"})
		}
	}

	meeting, err := meetings.CreateZoomMeeting(req.Title, req.StartTime, req.EndTime)
	if err != nil {
		log.Printf("🔥 Failed to create zoom meeting: %v", err)
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to create Zoom meeting"})
	}

	session := models.ZoomSession{
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Price:             req.Price,
		RegistrationFee:   req.RegistrationFee,
		CourseFee:         req.CourseFee,
		CourseFeeEnabled:  req.CourseFeeEnabled,
		RequiresApproval:  req.RequiresApproval,
		IsActive:          true,
		Capacity:          req.Capacity,
		RecurringClass:    req.RecurringClass,
		ThumbnailURL:      req.ThumbnailURL,
		HasModules:        len(req.Modules) > 0,
		IsFirstModuleFree: req.IsFirstModuleFree,
		ZoomLink:          meeting.JoinLink,
		ZoomMeetingID:     meeting.MeetingID,
		ZoomPassword:      meeting.Password,
		CreatedByID:       adminID,
	}

	for i, m := range req.Modules {
		module := models.ClassModule{
			Title:       m.Title,
			Description: m.Description,
			StartTime:   m.StartTime,
			EndTime:     m.EndTime,
			Position:    m.Position,
			IsFree:      m.IsFree || (req.IsFirstModuleFree && i == 0),
		}
		if m.OwnMeeting {
			moduleMeeting, err := meetings.CreateZoomMeeting(m.Title, m.StartTime, m.EndTime)
			if err != nil {
				log.Printf("🔥 Failed to create zoom meeting for module %q: %v", m.Title, err)
				cleanupThumbnail(req.ThumbnailURL)
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to create Zoom meeting for module"})
			}
			module.ZoomLink = moduleMeeting.JoinLink
			module.ZoomMeetingID = moduleMeeting.MeetingID
			module.ZoomPassword = moduleMeeting.Password
		}
		session.Modules = append(session.Modules, module)
	}

	if err := database.DB.Create(&session).Error; err != nil {
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create Zoom session"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session": session,
		"meetingDetails": services.MeetingDetails{
			Link:      session.ZoomLink,
			Password:  session.ZoomPassword,
			MeetingID: session.ZoomMeetingID,
		},
	})
}

type UpdateSessionRequest struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	StartTime        *time.Time `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	Price            *float64   `json:"price" validate:"omitempty,gte=0"`
	RegistrationFee  *float64   `json:"registrationFee" validate:"omitempty,gte=0"`
	CourseFee        *float64   `json:"courseFee" validate:"omitempty,gte=0"`
	RequiresApproval *bool      `json:"requiresApproval"`
	IsActive         *bool      `json:"isActive"`
	Capacity         *int       `json:"capacity"`
	ThumbnailURL     *string    `json:"thumbnailUrl"`
}

// UpdateZoomSession edits session metadata. Meeting credentials are never
// re-provisioned: schedule or title edits keep the original meeting.
func UpdateZoomSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
	}

	startTime := session.StartTime
	endTime := session.EndTime
	if req.StartTime != nil {
		startTime = *req.StartTime
	}
	if req.EndTime != nil {
		endTime = *req.EndTime
	}
	if !endTime.After(startTime) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.StartTime != nil {
		updates["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		updates["end_time"] = *req.EndTime
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.RegistrationFee != nil {
		updates["registration_fee"] = *req.RegistrationFee
	}
	if req.CourseFee != nil {
		updates["course_fee"] = *req.CourseFee
	}
	if req.RequiresApproval != nil {
		updates["requires_approval"] = *req.RequiresApproval
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Capacity != nil {
		updates["capacity"] = *req.Capacity
	}

	var oldThumbnail string
	if req.ThumbnailURL != nil {
		if session.ThumbnailURL != nil && *session.ThumbnailURL != *req.ThumbnailURL {
			oldThumbnail = *session.ThumbnailURL
		}
		updates["thumbnail_url"] = *req.ThumbnailURL
	}

	if err := database.DB.Model(&session).Updates(updates).Error; err != nil {
		cleanupThumbnail(req.ThumbnailURL)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update Zoom session"})
	}

	if oldThumbnail != "" {
		go services.DeleteThumbnail(oldThumbnail)
	}

	return c.JSON(session)
}

// DeleteZoomSession removes a session and cascades to its subscriptions,
// payments and modules in one transaction. The thumbnail delete afterwards is
// best-effort.
func DeleteZoomSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var subscriptionIDs []uuid.UUID
		if err := tx.Model(&models.ZoomSubscription{}).
			Where("zoom_session_id = ?", session.ID).
			Pluck("id", &subscriptionIDs).Error; err != nil {
			return err
		}

		if len(subscriptionIDs) > 0 {
			if err := tx.Where("subscription_id IN ?", subscriptionIDs).Delete(&models.ZoomPayment{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("zoom_session_id = ?", session.ID).Delete(&models.ZoomSubscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("zoom_session_id = ?", session.ID).Delete(&models.ClassModule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if err != nil {
		log.Printf("🔥 Error deleting zoom session %s: %v", session.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete Zoom session"})
	}

	if session.ThumbnailURL != nil {
		go services.DeleteThumbnail(*session.ThumbnailURL)
	}

	return c.JSON(fiber.Map{"message": "Zoom session deleted successfully"})
}

type subscribedUser struct {
	UserID           uuid.UUID `json:"userId"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Status           string    `json:"status"`
	HasAccessToLinks bool      `json:"hasAccessToLinks"`
}

type adminSessionResponse struct {
	models.ZoomSession
	SubscribedUsers []subscribedUser `json:"subscribedUsers"`
	SubscriberCount int              `json:"subscriberCount"`
}

// GetAllZoomSessions lists every session with its subscribers, newest first.
func GetAllZoomSessions(c *fiber.Ctx) error {
	var sessions []models.ZoomSession
	if err := database.DB.
		Preload("Subscriptions.User").
		Preload("Modules").
		Order("start_time desc").
		Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	responses := make([]adminSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		subscribers := make([]subscribedUser, 0, len(session.Subscriptions))
		for _, sub := range session.Subscriptions {
			subscribers = append(subscribers, subscribedUser{
				UserID:           sub.UserID,
				Name:             sub.User.FullName,
				Email:            sub.User.Email,
				Status:           sub.Status,
				HasAccessToLinks: sub.HasAccessToLinks,
			})
		}
		responses = append(responses, adminSessionResponse{
			ZoomSession:     session,
			SubscribedUsers: subscribers,
			SubscriberCount: len(subscribers),
		})
	}
	return c.JSON(responses)
}

// GetUserZoomSessions lists active upcoming sessions with the caller's
// subscription flag merged in. With ?includeAll=true past and inactive
// sessions are included when nothing matches the default filter.
func GetUserZoomSessions(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var sessions []models.ZoomSession
	if err := database.DB.
		Preload("CreatedBy").
		Preload("Modules").
		Where("is_active = ? AND start_time >= ?", true, time.Now()).
		Order("start_time asc").
		Find(&sessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	if len(sessions) == 0 && c.Query("includeAll") == "true" {
		if err := database.DB.
			Preload("CreatedBy").
			Preload("Modules").
			Order("start_time desc").
			Find(&sessions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
		}
	}

	subscribed := map[uuid.UUID]bool{}
	var subs []models.ZoomSubscription
	database.DB.
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Find(&subs)
	for _, sub := range subs {
		subscribed[sub.ZoomSessionID] = true
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, newSessionResponse(session, subscribed[session.ID]))
	}

	return c.JSON(responses)
}

type sessionDetailResponse struct {
	sessionResponse
	IsRegistered     bool                      `json:"isRegistered"`
	IsPending        bool                      `json:"isPending"`
	IsApproved       bool                      `json:"isApproved"`
	HasAccessToLinks bool                      `json:"hasAccessToLinks"`
	MeetingDetails   *services.MeetingDetails  `json:"meetingDetails,omitempty"`
}

// GetZoomSessionDetail merges session metadata with the caller's access
// state, so the client never reconciles gating flags from separate endpoints.
func GetZoomSessionDetail(c *fiber.Ctx) error {
	userID := currentUserID(c)
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	var session models.ZoomSession
	if err := database.DB.Preload("CreatedBy").Preload("Modules").First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	state, err := services.ComputeAccess(userID, sessionID, nil)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(sessionDetailResponse{
		sessionResponse:  newSessionResponse(session, state.IsSubscribed),
		IsRegistered:     state.IsRegistered,
		IsPending:        state.IsPending,
		IsApproved:       state.IsApproved,
		HasAccessToLinks: state.HasAccessToLinks,
		MeetingDetails:   state.MeetingDetails,
	})
}

func cleanupThumbnail(thumbnailURL *string) {
	if thumbnailURL == nil || *thumbnailURL == "" {
		return
	}
	go services.DeleteThumbnail(*thumbnailURL)
}
