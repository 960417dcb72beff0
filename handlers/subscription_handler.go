package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/services"
)

type SubscribeRequest struct {
	ZoomSessionID string `json:"zoomSessionId" validate:"required,uuid"`
	ModuleID      string `json:"moduleId" validate:"omitempty,uuid"`
}

// CreateZoomSubscription returns a gateway order for the applicable fee. The
// subscription row itself is only written once the payment proof verifies.
func CreateZoomSubscription(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, _ := uuid.Parse(req.ZoomSessionID)
	var moduleID *uuid.UUID
	if req.ModuleID != "" {
		id, _ := uuid.Parse(req.ModuleID)
		moduleID = &id
	}

	result, err := services.CreateSubscriptionOrder(userID, sessionID, moduleID)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(result)
}

type VerifyPaymentRequest struct {
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	ZoomSessionID     string `json:"zoomSessionId" validate:"required,uuid"`
	ModuleID          string `json:"moduleId" validate:"omitempty,uuid"`
}

// VerifyZoomPayment completes the registration flow against a gateway proof.
func VerifyZoomPayment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, _ := uuid.Parse(req.ZoomSessionID)
	var moduleID *uuid.UUID
	if req.ModuleID != "" {
		id, _ := uuid.Parse(req.ModuleID)
		moduleID = &id
	}

	result, err := services.VerifyRegistrationPayment(user, sessionID, moduleID, services.PaymentProof{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	message := "Payment successful and subscription activated"
	if result.Reactivated {
		message = "Payment successful and subscription reactivated"
	}
	return c.JSON(fiber.Map{
		"subscription": result.Subscription,
		"payment":      result.Payment,
		"message":      message,
	})
}

type CourseFeeOrderRequest struct {
	ZoomSessionID string `json:"zoomSessionId" validate:"required,uuid"`
}

// CreateCourseFeeOrderHandler starts the course-fee stage of a two-stage
// session. Users who already have link access are answered with a success and
// no new order, so they can never be charged twice.
func CreateCourseFeeOrderHandler(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req CourseFeeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, _ := uuid.Parse(req.ZoomSessionID)
	result, err := services.CreateCourseFeeOrder(userID, sessionID)
	if err != nil {
		if err == services.ErrAlreadyHasAccess {
			return c.JSON(fiber.Map{"alreadyHasAccess": true, "message": "You already have access to this class"})
		}
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(result)
}

type VerifyCourseFeeRequest struct {
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	ZoomSessionID     string `json:"zoomSessionId" validate:"required,uuid"`
}

// VerifyCourseFeePaymentHandler unlocks meeting links after a verified
// course-fee payment.
func VerifyCourseFeePaymentHandler(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	var req VerifyCourseFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, _ := uuid.Parse(req.ZoomSessionID)
	result, err := services.VerifyCourseFeePayment(user, sessionID, services.PaymentProof{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	})
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	message := "Course fee payment successful, class access unlocked"
	if result.AlreadyHadAccess {
		message = "You already have access to this class"
	}
	return c.JSON(fiber.Map{
		"subscription": result.Subscription,
		"payment":      result.Payment,
		"message":      message,
	})
}

// CheckZoomSubscription answers the join-flow access question for a session
// (optionally a module of it). Meeting details only appear on full access.
func CheckZoomSubscription(c *fiber.Ctx) error {
	userID := currentUserID(c)

	sessionID, err := uuid.Parse(c.Params("zoomSessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	moduleID, err := parseOptionalModuleID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid module ID"})
	}

	state, err := services.ComputeAccess(userID, sessionID, moduleID)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(state)
}

// CheckPaymentStatus reports which fees the caller has completed for a
// session, for the client to decide which payment step to offer next.
func CheckPaymentStatus(c *fiber.Ctx) error {
	userID := currentUserID(c)

	sessionID, err := uuid.Parse(c.Params("zoomSessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	state, err := services.ComputeAccess(userID, sessionID, nil)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"hasRegistered":    state.IsRegistered || state.IsPending,
		"hasPaidCourseFee": state.HasAccessToLinks,
		"isPending":        state.IsPending,
	})
}

type mySubscriptionResponse struct {
	models.ZoomSubscription
	ZoomSessionDisplay sessionResponse `json:"zoomSession"`
}

// GetMyZoomSubscriptions lists the caller's active subscriptions with
// denormalized session display fields.
func GetMyZoomSubscriptions(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var subs []models.ZoomSubscription
	if err := database.DB.
		Preload("ZoomSession.CreatedBy").
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	responses := make([]mySubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		display := newSessionResponse(sub.ZoomSession, true)
		sub.ZoomSession = models.ZoomSession{}
		responses = append(responses, mySubscriptionResponse{
			ZoomSubscription:   sub,
			ZoomSessionDisplay: display,
		})
	}

	return c.JSON(responses)
}

// CancelZoomSubscription lets the owner cancel. The row is kept for history
// and renewal eligibility.
func CancelZoomSubscription(c *fiber.Ctx) error {
	userID := currentUserID(c)

	subscriptionID, err := uuid.Parse(c.Params("subscriptionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription ID"})
	}

	sub, err := services.CancelSubscription(subscriptionID, userID, false)
	if err != nil {
		return c.Status(serviceErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"subscription": sub, "message": "Subscription cancelled successfully"})
}

// GenerateZoomReceipt returns the receipt details for one payment, to the
// paying user or an admin.
func GenerateZoomReceipt(c *fiber.Ctx) error {
	userID := currentUserID(c)

	paymentID, err := uuid.Parse(c.Params("paymentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment ID"})
	}

	var payment models.ZoomPayment
	if err := database.DB.
		Preload("User").
		Preload("Subscription.ZoomSession").
		First(&payment, "id = ?", paymentID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	}

	if payment.UserID != userID && currentUserRole(c) != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You don't have permission to access this receipt"})
	}

	return c.JSON(fiber.Map{
		"receiptNumber":    payment.ReceiptNumber,
		"amount":           payment.Amount,
		"currency":         payment.Currency,
		"paymentType":      payment.PaymentType,
		"paymentDate":      payment.CreatedAt,
		"userName":         payment.User.FullName,
		"userEmail":        payment.User.Email,
		"sessionTitle":     payment.Subscription.ZoomSession.Title,
		"sessionStartDate": payment.Subscription.ZoomSession.StartTime,
		"paymentId":        payment.RazorpayPaymentID,
	})
}
