package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/notifications"
	"github.com/rishabh2304/liveclass_backend/services"
	"gorm.io/gorm"
)

// GetZoomSessionAttendees reports the active subscribers of a session with
// their latest payment and next due date.
func GetZoomSessionAttendees(c *fiber.Ctx) error {
	sessionID := c.Params("zoomSessionId")

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
	}

	var subs []models.ZoomSubscription
	if err := database.DB.
		Preload("User").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at desc")
		}).
		Where("zoom_session_id = ? AND status = ?", session.ID, models.SubscriptionStatusActive).
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	type attendee struct {
		UserID             uuid.UUID           `json:"userId"`
		Name               string              `json:"name"`
		Email              string              `json:"email"`
		SubscriptionID     uuid.UUID           `json:"subscriptionId"`
		SubscriptionStatus string              `json:"subscriptionStatus"`
		IsApproved         bool                `json:"isApproved"`
		HasAccessToLinks   bool                `json:"hasAccessToLinks"`
		LastPayment        *models.ZoomPayment `json:"lastPayment"`
		NextPaymentDue     *time.Time          `json:"nextPaymentDue"`
	}

	attendees := make([]attendee, 0, len(subs))
	for _, sub := range subs {
		a := attendee{
			UserID:             sub.UserID,
			Name:               sub.User.FullName,
			Email:              sub.User.Email,
			SubscriptionID:     sub.ID,
			SubscriptionStatus: sub.Status,
			IsApproved:         sub.IsApproved,
			HasAccessToLinks:   sub.HasAccessToLinks,
			NextPaymentDue:     sub.NextPaymentDate,
		}
		if len(sub.Payments) > 0 {
			a.LastPayment = &sub.Payments[0]
		}
		attendees = append(attendees, a)
	}

	return c.JSON(fiber.Map{
		"zoomSession":    newSessionResponse(session, false),
		"attendees":      attendees,
		"totalAttendees": len(attendees),
	})
}

// SendMeetingReminders emails the meeting link to every subscriber who has
// link access. Subscribers still awaiting approval or the course fee are
// skipped so credentials never leave the gate early.
func SendMeetingReminders(c *fiber.Ctx) error {
	sessionID := c.Params("zoomSessionId")

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
	}

	var subs []models.ZoomSubscription
	if err := database.DB.
		Preload("User").
		Where("zoom_session_id = ? AND status = ? AND has_access_to_links = ?",
			session.ID, models.SubscriptionStatusActive, true).
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	for _, sub := range subs {
		go notifications.SendMeetingReminder(
			sub.User.FullName, sub.User.Email,
			session.Title, session.StartTime, session.ZoomLink, session.ZoomPassword,
		)
	}

	return c.JSON(fiber.Map{"remindersSent": len(subs), "message": "Meeting reminders sent successfully"})
}

type BulkUserRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,uuid"`
}

func parseBulkUserRequest(c *fiber.Ctx) ([]uuid.UUID, error) {
	var req BulkUserRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ApproveRegistrationsHandler bulk-approves registrations. For two-stage
// sessions this unlocks the course-fee step only.
func ApproveRegistrationsHandler(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("zoomSessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	userIDs, err := parseBulkUserRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	approved, err := services.ApproveRegistrations(sessionID, userIDs)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"approved": approved, "message": "Registrations approved"})
}

// RejectRegistrationsHandler bulk-rejects pending registrations.
func RejectRegistrationsHandler(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("zoomSessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	userIDs, err := parseBulkUserRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rejected, err := services.RejectRegistrations(sessionID, userIDs)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"rejected": rejected, "message": "Registrations rejected"})
}

// RemoveAccessHandler bulk-revokes approval and link access.
func RemoveAccessHandler(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("zoomSessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	userIDs, err := parseBulkUserRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	removed, err := services.RemoveAccess(sessionID, userIDs)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"removed": removed, "message": "Access removed"})
}

type ToggleCourseFeeRequest struct {
	CourseFeeEnabled *bool    `json:"courseFeeEnabled"`
	RegistrationFee  *float64 `json:"registrationFee" validate:"omitempty,gte=0"`
	CourseFee        *float64 `json:"courseFee" validate:"omitempty,gte=0"`
}

// ToggleCourseFee switches a session between the flat and two-stage fee
// models, optionally updating the fee amounts in the same call.
func ToggleCourseFee(c *fiber.Ctx) error {
	sessionID := c.Params("zoomSessionId")

	var req ToggleCourseFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Zoom session not found"})
	}

	enabled := !session.CourseFeeEnabled
	if req.CourseFeeEnabled != nil {
		enabled = *req.CourseFeeEnabled
	}

	updates := map[string]interface{}{"course_fee_enabled": enabled}
	if req.RegistrationFee != nil {
		updates["registration_fee"] = *req.RegistrationFee
	}
	if req.CourseFee != nil {
		updates["course_fee"] = *req.CourseFee
	}

	if err := database.DB.Model(&session).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update session"})
	}

	return c.JSON(session)
}

// ProcessZoomRenewals runs the renewal sweep. Also invoked on a schedule; the
// sweep is idempotent so overlapping runs are harmless.
func ProcessZoomRenewals(c *fiber.Ctx) error {
	result, err := services.ProcessRenewals(time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process renewals"})
	}
	return c.JSON(result)
}

// GetAllZoomPayments lists payments newest first, paginated.
func GetAllZoomPayments(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	var payments []models.ZoomPayment
	if err := database.DB.
		Preload("User").
		Preload("Subscription.ZoomSession").
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var total int64
	database.DB.Model(&models.ZoomPayment{}).Count(&total)

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}

	return c.JSON(fiber.Map{
		"payments": payments,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"pages": pages,
		},
	})
}

// GetAllZoomSubscriptions lists every subscription with user and session.
func GetAllZoomSubscriptions(c *fiber.Ctx) error {
	var subs []models.ZoomSubscription
	if err := database.DB.
		Preload("User").
		Preload("ZoomSession").
		Order("created_at desc").
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(subs)
}

// AdminCancelZoomSubscription cancels on behalf of a user and notifies them.
func AdminCancelZoomSubscription(c *fiber.Ctx) error {
	adminID := currentUserID(c)

	subscriptionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription ID"})
	}

	sub, err := services.CancelSubscription(subscriptionID, adminID, true)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"subscription": sub, "message": "Subscription cancelled successfully"})
}

type sessionPopularity struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	SubscriberCount int64     `json:"subscriberCount"`
	IsActive        bool      `json:"isActive"`
}

// GetZoomAnalytics aggregates revenue and subscription numbers for the
// dashboard.
func GetZoomAnalytics(c *fiber.Ctx) error {
	var totalSessions, activeSubscriptions int64
	database.DB.Model(&models.ZoomSession{}).Count(&totalSessions)
	database.DB.Model(&models.ZoomSubscription{}).
		Where("status = ?", models.SubscriptionStatusActive).
		Count(&activeSubscriptions)

	var completed []models.ZoomPayment
	if err := database.DB.
		Where("status = ?", models.PaymentStatusCompleted).
		Find(&completed).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var totalRevenue float64
	monthlyRevenue := map[string]float64{}
	for _, payment := range completed {
		totalRevenue += payment.Amount
		month := payment.CreatedAt.Format("January 2006")
		monthlyRevenue[month] += payment.Amount
	}

	var recentPayments []models.ZoomPayment
	database.DB.
		Preload("User").
		Preload("Subscription.ZoomSession").
		Where("status = ?", models.PaymentStatusCompleted).
		Order("created_at desc").
		Limit(5).
		Find(&recentPayments)

	var sessions []models.ZoomSession
	database.DB.Find(&sessions)

	popularity := make([]sessionPopularity, 0, len(sessions))
	for _, session := range sessions {
		var count int64
		database.DB.Model(&models.ZoomSubscription{}).
			Where("zoom_session_id = ? AND status = ?", session.ID, models.SubscriptionStatusActive).
			Count(&count)
		popularity = append(popularity, sessionPopularity{
			ID:              session.ID,
			Title:           session.Title,
			SubscriberCount: count,
			IsActive:        session.IsActive,
		})
	}
	for i := 0; i < len(popularity); i++ {
		for j := i + 1; j < len(popularity); j++ {
			if popularity[j].SubscriberCount > popularity[i].SubscriberCount {
				popularity[i], popularity[j] = popularity[j], popularity[i]
			}
		}
	}

	return c.JSON(fiber.Map{
		"totalSessions":       totalSessions,
		"activeSubscriptions": activeSubscriptions,
		"totalRevenue":        totalRevenue,
		"monthlyRevenue":      monthlyRevenue,
		"recentPayments":      recentPayments,
		"sessionPopularity":   popularity,
	})
}
