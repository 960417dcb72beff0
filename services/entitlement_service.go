package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/notifications"
	"github.com/rishabh2304/liveclass_backend/payments"
	"github.com/rishabh2304/liveclass_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound      = errors.New("zoom session not found")
	ErrSessionInactive      = errors.New("this zoom session is not active")
	ErrModuleNotFound       = errors.New("module not found for this session")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadyRegistered    = errors.New("you are already subscribed to this zoom session")
	ErrAlreadyHasAccess     = errors.New("you already have access to this class")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrCourseFeeDisabled    = errors.New("course fee is not enabled for this session")
	ErrRegistrationRequired = errors.New("registration payment is required first")
	ErrApprovalRequired     = errors.New("registration is pending admin approval")
	ErrPaymentProcessing    = errors.New("failed to process payment")
	ErrForbidden            = errors.New("you are not allowed to perform this action")
)

// swapped out in tests
var createOrder = payments.CreateRazorpayOrder

type PaymentProof struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

type OrderResult struct {
	Order                  *payments.RazorpayOrder `json:"order"`
	Session                models.ZoomSession      `json:"zoomSession"`
	IsRenewal              bool                    `json:"isRenewal"`
	PreviousSubscriptionID *uuid.UUID              `json:"previousSubscriptionId"`
}

type VerifiedSubscription struct {
	Subscription     models.ZoomSubscription `json:"subscription"`
	Payment          *models.ZoomPayment     `json:"payment,omitempty"`
	Reactivated      bool                    `json:"reactivated"`
	AlreadyHadAccess bool                    `json:"alreadyHadAccess"`
}

// CreateSubscriptionOrder starts the registration flow: it sizes a gateway
// order to the applicable fee (registration fee for two-stage sessions, flat
// price otherwise) and reports whether this is a renewal of a cancelled or
// expired row. Nothing is marked paid here.
func CreateSubscriptionOrder(userID, sessionID uuid.UUID, moduleID *uuid.UUID) (*OrderResult, error) {
	var session models.ZoomSession
	if err := database.DB.Preload("Modules").First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionInactive
	}
	if moduleID != nil {
		if findModule(&session, *moduleID) == nil {
			return nil, ErrModuleNotFound
		}
	}

	var existing models.ZoomSubscription
	err := database.DB.Where("user_id = ? AND zoom_session_id = ?", userID, sessionID).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result := &OrderResult{Session: session}
	if err == nil {
		switch existing.Status {
		case models.SubscriptionStatusActive, models.SubscriptionStatusPendingApproval:
			return nil, ErrAlreadyRegistered
		case models.SubscriptionStatusCancelled, models.SubscriptionStatusExpired:
			result.IsRenewal = true
			prevID := existing.ID
			result.PreviousSubscriptionID = &prevID
		}
	}

	amount := session.Price
	subscriptionType := "new"
	if session.CourseFeeEnabled {
		amount = session.RegistrationFee
	}
	if result.IsRenewal {
		subscriptionType = "renewal"
	}

	notes := map[string]string{
		"userId":           userID.String(),
		"zoomSessionId":    sessionID.String(),
		"subscriptionType": subscriptionType,
	}
	if result.PreviousSubscriptionID != nil {
		notes["previousSubscriptionId"] = result.PreviousSubscriptionID.String()
	}

	order, err := createOrder(amount, "INR", utils.GenerateOrderReceipt(sessionID, userID), notes)
	if err != nil {
		return nil, err
	}
	result.Order = order
	return result, nil
}

// VerifyRegistrationPayment checks the gateway proof and, inside one
// transaction, upserts the (user, session) subscription row and appends the
// payment record. A unique-index conflict from a concurrent verification is
// converted into an update of the winning row rather than surfaced.
func VerifyRegistrationPayment(user models.User, sessionID uuid.UUID, moduleID *uuid.UUID, proof PaymentProof) (*VerifiedSubscription, error) {
	if !payments.VerifyRazorpaySignature(proof.RazorpayOrderID, proof.RazorpayPaymentID, proof.RazorpaySignature) {
		return nil, ErrInvalidSignature
	}

	var session models.ZoomSession
	if err := database.DB.Preload("Modules").First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if moduleID != nil {
		if findModule(&session, *moduleID) == nil {
			return nil, ErrModuleNotFound
		}
	}

	result, err := applyRegistration(&session, user, moduleID, proof)
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent verification inserted the row first; retry as an update.
		log.Printf("Duplicate subscription insert for user %s session %s, retrying as update", user.ID, sessionID)
		result, err = applyRegistration(&session, user, moduleID, proof)
	}
	if err != nil {
		// A duplicate on the payment index means this exact proof was already
		// recorded; answer with the existing records instead of failing.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if recorded := findRecordedPayment(user.ID, sessionID, proof.RazorpayPaymentID); recorded != nil {
				return recorded, nil
			}
		}
		log.Printf("🔥 Error completing registration payment for user %s session %s: %v", user.ID, sessionID, err)
		return nil, ErrPaymentProcessing
	}

	go sendConfirmation(user, session, result)

	return result, nil
}

func applyRegistration(session *models.ZoomSession, user models.User, moduleID *uuid.UUID, proof PaymentProof) (*VerifiedSubscription, error) {
	now := time.Now()
	endDate := now.AddDate(0, 1, 0)

	var out VerifiedSubscription
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var sub models.ZoomSubscription
		err := tx.Where("user_id = ? AND zoom_session_id = ?", user.ID, session.ID).First(&sub).Error
		switch {
		case err == nil:
			out.Reactivated = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = models.ZoomSubscription{UserID: user.ID, ZoomSessionID: session.ID}
		default:
			return err
		}

		sub.Status = models.SubscriptionStatusActive
		if session.CourseFeeEnabled && session.RequiresApproval {
			sub.Status = models.SubscriptionStatusPendingApproval
			sub.IsApproved = false
		}
		sub.IsRegistered = true
		// Link access from a registration payment alone only exists in the
		// flat model; two-stage sessions gate it on the course fee.
		sub.HasAccessToLinks = !session.CourseFeeEnabled
		sub.StartDate = &now
		sub.EndDate = &endDate
		sub.NextPaymentDate = &endDate
		if moduleID != nil {
			sub.ModuleID = moduleID
		}

		if out.Reactivated {
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		}

		amount := session.Price
		paymentType := models.PaymentTypeSubscription
		if session.CourseFeeEnabled {
			amount = session.RegistrationFee
			paymentType = models.PaymentTypeRegistration
		}

		payment := models.ZoomPayment{
			UserID:            user.ID,
			SubscriptionID:    sub.ID,
			Amount:            amount,
			Currency:          "INR",
			RazorpayOrderID:   proof.RazorpayOrderID,
			RazorpayPaymentID: proof.RazorpayPaymentID,
			RazorpaySignature: proof.RazorpaySignature,
			ReceiptNumber:     utils.GenerateReceiptNumber(),
			PaymentType:       paymentType,
			Status:            models.PaymentStatusCompleted,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		sub.RegistrationPaymentID = &payment.ID
		if err := tx.Model(&sub).Update("registration_payment_id", payment.ID).Error; err != nil {
			return err
		}

		out.Subscription = sub
		out.Payment = &payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCourseFeeOrder starts the second payment stage for a two-stage
// session. The registration must already be in place and, where the session
// demands it, approved by an admin.
func CreateCourseFeeOrder(userID, sessionID uuid.UUID) (*OrderResult, error) {
	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionInactive
	}
	if !session.CourseFeeEnabled {
		return nil, ErrCourseFeeDisabled
	}

	sub, err := requireCourseFeeEligible(userID, &session)
	if err != nil {
		return nil, err
	}
	if sub.HasAccessToLinks {
		return nil, ErrAlreadyHasAccess
	}

	notes := map[string]string{
		"userId":        userID.String(),
		"zoomSessionId": sessionID.String(),
		"purpose":       "course_fee",
	}
	order, err := createOrder(session.CourseFee, "INR", utils.GenerateOrderReceipt(sessionID, userID), notes)
	if err != nil {
		return nil, err
	}

	return &OrderResult{Order: order, Session: session}, nil
}

// VerifyCourseFeePayment unlocks meeting links after a verified course-fee
// payment. Verifying for a user who already has access is a no-op success and
// records nothing.
func VerifyCourseFeePayment(user models.User, sessionID uuid.UUID, proof PaymentProof) (*VerifiedSubscription, error) {
	if !payments.VerifyRazorpaySignature(proof.RazorpayOrderID, proof.RazorpayPaymentID, proof.RazorpaySignature) {
		return nil, ErrInvalidSignature
	}

	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !session.CourseFeeEnabled {
		return nil, ErrCourseFeeDisabled
	}

	sub, err := requireCourseFeeEligible(user.ID, &session)
	if err != nil {
		return nil, err
	}
	if sub.HasAccessToLinks {
		return &VerifiedSubscription{Subscription: *sub, AlreadyHadAccess: true}, nil
	}

	var out VerifiedSubscription
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(sub).Updates(map[string]interface{}{
			"has_access_to_links": true,
			"status":              models.SubscriptionStatusActive,
		}).Error; err != nil {
			return err
		}

		payment := models.ZoomPayment{
			UserID:            user.ID,
			SubscriptionID:    sub.ID,
			Amount:            session.CourseFee,
			Currency:          "INR",
			RazorpayOrderID:   proof.RazorpayOrderID,
			RazorpayPaymentID: proof.RazorpayPaymentID,
			RazorpaySignature: proof.RazorpaySignature,
			ReceiptNumber:     utils.GenerateReceiptNumber(),
			PaymentType:       models.PaymentTypeCourseFee,
			Status:            models.PaymentStatusCompleted,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		sub.HasAccessToLinks = true
		sub.Status = models.SubscriptionStatusActive
		out.Subscription = *sub
		out.Payment = &payment
		return nil
	})
	if err != nil {
		log.Printf("🔥 Error completing course fee payment for user %s session %s: %v", user.ID, sessionID, err)
		return nil, ErrPaymentProcessing
	}

	go sendConfirmation(user, session, &out)

	return &out, nil
}

func findRecordedPayment(userID, sessionID uuid.UUID, razorpayPaymentID string) *VerifiedSubscription {
	var payment models.ZoomPayment
	err := database.DB.First(&payment, "razorpay_payment_id = ? AND user_id = ?", razorpayPaymentID, userID).Error
	if err != nil {
		return nil
	}
	var sub models.ZoomSubscription
	if err := database.DB.First(&sub, "id = ?", payment.SubscriptionID).Error; err != nil || sub.ZoomSessionID != sessionID {
		return nil
	}
	return &VerifiedSubscription{Subscription: sub, Payment: &payment, Reactivated: true}
}

func requireCourseFeeEligible(userID uuid.UUID, session *models.ZoomSession) (*models.ZoomSubscription, error) {
	var sub models.ZoomSubscription
	err := database.DB.Where("user_id = ? AND zoom_session_id = ?", userID, session.ID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationRequired
		}
		return nil, err
	}
	if !sub.IsRegistered {
		return nil, ErrRegistrationRequired
	}
	switch sub.Status {
	case models.SubscriptionStatusPendingApproval:
		return nil, ErrApprovalRequired
	case models.SubscriptionStatusActive:
	default:
		return nil, ErrRegistrationRequired
	}
	if session.RequiresApproval && !sub.IsApproved {
		return nil, ErrApprovalRequired
	}
	return &sub, nil
}

func sendConfirmation(user models.User, session models.ZoomSession, result *VerifiedSubscription) {
	data := notifications.SubscriptionConfirmation{
		SessionTitle: session.Title,
		StartTime:    session.StartTime,
	}
	if result.Payment != nil {
		data.Amount = result.Payment.Amount
		data.ReceiptNumber = result.Payment.ReceiptNumber
		data.PaymentID = result.Payment.RazorpayPaymentID
	}
	if result.Subscription.HasAccessToLinks {
		data.MeetingLink = session.ZoomLink
		data.Password = session.ZoomPassword
	}
	notifications.SendSubscriptionConfirmed(user.FullName, user.Email, data)
}

// CancelSubscription marks the row CANCELLED without deleting it, keeping the
// payment history and renewal eligibility. Admins may cancel on behalf of
// users, which also notifies them.
func CancelSubscription(subscriptionID, actorID uuid.UUID, isAdmin bool) (*models.ZoomSubscription, error) {
	var sub models.ZoomSubscription
	if err := database.DB.Preload("User").Preload("ZoomSession").First(&sub, "id = ?", subscriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if !isAdmin && sub.UserID != actorID {
		return nil, ErrForbidden
	}

	sub.Status = models.SubscriptionStatusCancelled
	if err := database.DB.Model(&sub).Update("status", models.SubscriptionStatusCancelled).Error; err != nil {
		return nil, err
	}

	if isAdmin {
		go notifications.SendSubscriptionCancelled(sub.User.FullName, sub.User.Email, sub.ZoomSession.Title)
	}

	return &sub, nil
}

// ApproveRegistrations bulk-approves the given users under a session. For
// two-stage sessions this only unlocks the course-fee step; link access still
// requires the verified course-fee payment.
func ApproveRegistrations(sessionID uuid.UUID, userIDs []uuid.UUID) (int64, error) {
	var session models.ZoomSession
	if err := database.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}

	var approved int64
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"is_approved": true}
		if !session.CourseFeeEnabled {
			updates["has_access_to_links"] = true
		}

		res := tx.Model(&models.ZoomSubscription{}).
			Where("zoom_session_id = ? AND user_id IN ?", sessionID, userIDs).
			Where("status IN ?", []string{models.SubscriptionStatusActive, models.SubscriptionStatusPendingApproval}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		approved = res.RowsAffected

		return tx.Model(&models.ZoomSubscription{}).
			Where("zoom_session_id = ? AND user_id IN ? AND status = ?", sessionID, userIDs, models.SubscriptionStatusPendingApproval).
			Update("status", models.SubscriptionStatusActive).Error
	})
	return approved, err
}

// RejectRegistrations bulk-rejects pending registrations.
func RejectRegistrations(sessionID uuid.UUID, userIDs []uuid.UUID) (int64, error) {
	res := database.DB.Model(&models.ZoomSubscription{}).
		Where("zoom_session_id = ? AND user_id IN ? AND status = ?", sessionID, userIDs, models.SubscriptionStatusPendingApproval).
		Updates(map[string]interface{}{
			"status":              models.SubscriptionStatusRejected,
			"is_approved":         false,
			"has_access_to_links": false,
		})
	return res.RowsAffected, res.Error
}

// RemoveAccess bulk-revokes approval and link access without touching the
// payment history.
func RemoveAccess(sessionID uuid.UUID, userIDs []uuid.UUID) (int64, error) {
	res := database.DB.Model(&models.ZoomSubscription{}).
		Where("zoom_session_id = ? AND user_id IN ?", sessionID, userIDs).
		Updates(map[string]interface{}{
			"is_approved":         false,
			"has_access_to_links": false,
		})
	return res.RowsAffected, res.Error
}

func findModule(session *models.ZoomSession, moduleID uuid.UUID) *models.ClassModule {
	for i := range session.Modules {
		if session.Modules[i].ID == moduleID {
			return &session.Modules[i]
		}
	}
	return nil
}
