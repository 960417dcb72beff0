package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/services"
)

var validate = validator.New()

func currentUserID(c *fiber.Ctx) uuid.UUID {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	id, _ := uuid.Parse(claims["user_id"].(string))
	return id
}

func currentUserRole(c *fiber.Ctx) string {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	role, _ := claims["role"].(string)
	return role
}

func currentUser(c *fiber.Ctx) (models.User, error) {
	var user models.User
	err := database.DB.First(&user, "id = ?", currentUserID(c)).Error
	return user, err
}

func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrModuleNotFound),
		errors.Is(err, services.ErrSubscriptionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrSessionInactive),
		errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrInvalidSignature),
		errors.Is(err, services.ErrCourseFeeDisabled),
		errors.Is(err, services.ErrRegistrationRequired),
		errors.Is(err, services.ErrApprovalRequired):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

type sessionResponse struct {
	models.ZoomSession
	IsSubscribed  bool   `json:"isSubscribed"`
	TeacherName   string `json:"teacherName"`
	FormattedDate string `json:"formattedDate"`
	FormattedTime string `json:"formattedTime"`
	Duration      int    `json:"duration"`
}

func newSessionResponse(session models.ZoomSession, isSubscribed bool) sessionResponse {
	teacherName := session.CreatedBy.FullName
	if teacherName == "" {
		teacherName = "Instructor"
	}
	return sessionResponse{
		ZoomSession:   session,
		IsSubscribed:  isSubscribed,
		TeacherName:   teacherName,
		FormattedDate: session.StartTime.Format("Monday, January 2, 2006"),
		FormattedTime: session.StartTime.Format("03:04 PM"),
		Duration:      int(session.EndTime.Sub(session.StartTime).Minutes()),
	}
}

func parseOptionalModuleID(c *fiber.Ctx) (*uuid.UUID, error) {
	raw := c.Query("moduleId")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
