package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/payments"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testKeySecret = "test-key-secret"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.ZoomSession{},
		&models.ClassModule{},
		&models.ZoomSubscription{},
		&models.ZoomPayment{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	database.DB = db
	t.Setenv("RAZORPAY_KEY_SECRET", testKeySecret)
	return db
}

func stubCreateOrder(t *testing.T) {
	t.Helper()
	orig := createOrder
	var n int
	createOrder = func(amount float64, currency, receipt string, notes map[string]string) (*payments.RazorpayOrder, error) {
		n++
		return &payments.RazorpayOrder{
			ID:       fmt.Sprintf("order_test_%d", n),
			Amount:   int64(amount * 100),
			Currency: currency,
			Receipt:  receipt,
			Status:   "created",
		}, nil
	}
	t.Cleanup(func() { createOrder = orig })
}

func signProof(orderID, paymentID string) PaymentProof {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return PaymentProof{
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: hex.EncodeToString(mac.Sum(nil)),
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{FullName: "Test Student", Email: email, Password: "hashed", Role: "student"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createFlatSession(t *testing.T, db *gorm.DB, admin models.User, price float64) models.ZoomSession {
	t.Helper()
	session := models.ZoomSession{
		Title:        "Monthly Yoga",
		StartTime:    time.Now().Add(24 * time.Hour),
		EndTime:      time.Now().Add(25 * time.Hour),
		Price:        price,
		IsActive:     true,
		ZoomLink:     "https://zoom.us/j/111",
		ZoomPassword: "flat-pass",
		CreatedByID:  admin.ID,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func createTwoStageSession(t *testing.T, db *gorm.DB, admin models.User, regFee, courseFee float64, requiresApproval bool) models.ZoomSession {
	t.Helper()
	session := models.ZoomSession{
		Title:            "Advanced Math",
		StartTime:        time.Now().Add(48 * time.Hour),
		EndTime:          time.Now().Add(50 * time.Hour),
		RegistrationFee:  regFee,
		CourseFee:        courseFee,
		CourseFeeEnabled: true,
		RequiresApproval: requiresApproval,
		IsActive:         true,
		ZoomLink:         "https://zoom.us/j/222",
		ZoomPassword:     "stage-pass",
		CreatedByID:      admin.ID,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func TestVerifyRegistrationPaymentFlatModel(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	result, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	sub := result.Subscription
	if sub.Status != models.SubscriptionStatusActive {
		t.Errorf("expected ACTIVE status, got %s", sub.Status)
	}
	if !sub.IsRegistered {
		t.Error("expected subscription to be registered")
	}
	if !sub.HasAccessToLinks {
		t.Error("flat-model payment should grant link access immediately")
	}
	if sub.EndDate == nil || sub.NextPaymentDate == nil {
		t.Fatal("expected end date and next payment date to be set")
	}
	wantEnd := time.Now().AddDate(0, 1, 0)
	if diff := sub.EndDate.Sub(wantEnd); diff > time.Minute || diff < -time.Minute {
		t.Errorf("end date not one month out: %v", sub.EndDate)
	}

	if result.Payment == nil {
		t.Fatal("expected a payment record")
	}
	if result.Payment.PaymentType != models.PaymentTypeSubscription {
		t.Errorf("expected SUBSCRIPTION payment type, got %s", result.Payment.PaymentType)
	}
	if result.Payment.Amount != 499 {
		t.Errorf("expected amount 499, got %v", result.Payment.Amount)
	}
	if result.Payment.Status != models.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED payment, got %s", result.Payment.Status)
	}

	var stored models.ZoomSubscription
	if err := db.First(&stored, "id = ?", sub.ID).Error; err != nil {
		t.Fatalf("subscription not persisted: %v", err)
	}
	if stored.RegistrationPaymentID == nil || *stored.RegistrationPaymentID != result.Payment.ID {
		t.Error("registration payment id not linked to subscription")
	}
}

func TestVerifyRegistrationPaymentInvalidSignature(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	proof := signProof("order_1", "pay_1")
	proof.RazorpaySignature = "deadbeef"

	_, err := VerifyRegistrationPayment(user, session.ID, nil, proof)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	var subCount, payCount int64
	db.Model(&models.ZoomSubscription{}).Count(&subCount)
	db.Model(&models.ZoomPayment{}).Count(&payCount)
	if subCount != 0 || payCount != 0 {
		t.Errorf("rejected payment must write nothing, got %d subs %d payments", subCount, payCount)
	}
}

func TestTwoStageFlow(t *testing.T) {
	db := setupTestDB(t)
	stubCreateOrder(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createTwoStageSession(t, db, admin, 100, 900, false)

	// Course fee before any registration is refused.
	if _, err := CreateCourseFeeOrder(user.ID, session.ID); !errors.Is(err, ErrRegistrationRequired) {
		t.Fatalf("expected ErrRegistrationRequired, got %v", err)
	}

	order, err := CreateSubscriptionOrder(user.ID, session.ID, nil)
	if err != nil {
		t.Fatalf("CreateSubscriptionOrder failed: %v", err)
	}
	if order.Order.Amount != 100*100 {
		t.Errorf("registration order should be sized to the registration fee, got %d paise", order.Order.Amount)
	}

	reg, err := VerifyRegistrationPayment(user, session.ID, nil, signProof(order.Order.ID, "pay_reg"))
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}
	if reg.Subscription.Status != models.SubscriptionStatusActive {
		t.Errorf("expected ACTIVE after registration, got %s", reg.Subscription.Status)
	}
	if reg.Subscription.HasAccessToLinks {
		t.Error("registration alone must not grant link access on a two-stage session")
	}
	if reg.Payment.PaymentType != models.PaymentTypeRegistration {
		t.Errorf("expected REGISTRATION payment type, got %s", reg.Payment.PaymentType)
	}

	feeOrder, err := CreateCourseFeeOrder(user.ID, session.ID)
	if err != nil {
		t.Fatalf("CreateCourseFeeOrder failed: %v", err)
	}
	if feeOrder.Order.Amount != 900*100 {
		t.Errorf("course fee order should be sized to the course fee, got %d paise", feeOrder.Order.Amount)
	}

	fee, err := VerifyCourseFeePayment(user, session.ID, signProof(feeOrder.Order.ID, "pay_fee"))
	if err != nil {
		t.Fatalf("VerifyCourseFeePayment failed: %v", err)
	}
	if !fee.Subscription.HasAccessToLinks {
		t.Error("verified course fee must unlock link access")
	}
	if fee.Payment.PaymentType != models.PaymentTypeCourseFee {
		t.Errorf("expected COURSE_FEE payment type, got %s", fee.Payment.PaymentType)
	}

	// Paying again is a no-op success, never a second charge.
	if _, err := CreateCourseFeeOrder(user.ID, session.ID); !errors.Is(err, ErrAlreadyHasAccess) {
		t.Fatalf("expected ErrAlreadyHasAccess, got %v", err)
	}
	again, err := VerifyCourseFeePayment(user, session.ID, signProof("order_x", "pay_x"))
	if err != nil {
		t.Fatalf("repeat VerifyCourseFeePayment failed: %v", err)
	}
	if !again.AlreadyHadAccess {
		t.Error("expected AlreadyHadAccess on repeat verification")
	}

	var payCount int64
	db.Model(&models.ZoomPayment{}).Count(&payCount)
	if payCount != 2 {
		t.Errorf("expected exactly 2 payments (registration + course fee), got %d", payCount)
	}
}

func TestRequiresApprovalFlow(t *testing.T) {
	db := setupTestDB(t)
	stubCreateOrder(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createTwoStageSession(t, db, admin, 100, 900, true)

	reg, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_reg", "pay_reg"))
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}
	if reg.Subscription.Status != models.SubscriptionStatusPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL, got %s", reg.Subscription.Status)
	}

	if _, err := CreateCourseFeeOrder(user.ID, session.ID); !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("expected ErrApprovalRequired before approval, got %v", err)
	}

	approved, err := ApproveRegistrations(session.ID, []uuid.UUID{user.ID})
	if err != nil {
		t.Fatalf("ApproveRegistrations failed: %v", err)
	}
	if approved != 1 {
		t.Fatalf("expected 1 approval, got %d", approved)
	}

	var sub models.ZoomSubscription
	if err := db.Where("user_id = ? AND zoom_session_id = ?", user.ID, session.ID).First(&sub).Error; err != nil {
		t.Fatalf("subscription missing: %v", err)
	}
	if sub.Status != models.SubscriptionStatusActive || !sub.IsApproved {
		t.Errorf("expected approved ACTIVE subscription, got status=%s approved=%v", sub.Status, sub.IsApproved)
	}
	if sub.HasAccessToLinks {
		t.Error("approval on a two-stage session must not grant link access")
	}

	if _, err := CreateCourseFeeOrder(user.ID, session.ID); err != nil {
		t.Fatalf("course fee order should succeed after approval: %v", err)
	}
	fee, err := VerifyCourseFeePayment(user, session.ID, signProof("order_fee", "pay_fee"))
	if err != nil {
		t.Fatalf("VerifyCourseFeePayment failed: %v", err)
	}
	if !fee.Subscription.HasAccessToLinks {
		t.Error("verified course fee must unlock link access after approval")
	}
}

func TestVerifyRegistrationPaymentRecoversFromConcurrentInsert(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	// Sneak a competing row in between the lookup and the insert, the way a
	// second verification racing this one would.
	injected := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_insert", func(tx *gorm.DB) {
		if injected {
			return
		}
		if _, ok := tx.Statement.Dest.(*models.ZoomSubscription); !ok {
			return
		}
		injected = true
		now := time.Now()
		_, execErr := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO zoom_subscriptions (id, user_id, zoom_session_id, status, is_registered, is_approved, has_access_to_links, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			uuid.New().String(), user.ID.String(), session.ID.String(),
			models.SubscriptionStatusActive, true, false, true, now, now)
		if execErr != nil {
			t.Errorf("failed to insert competing row: %v", execErr)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
	t.Cleanup(func() { db.Callback().Create().Remove("competing_insert") })

	result, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("verification losing the insert race must recover, got %v", err)
	}
	if !injected {
		t.Fatal("competing insert never fired")
	}
	if result.Subscription.Status != models.SubscriptionStatusActive {
		t.Errorf("expected ACTIVE after recovery, got %s", result.Subscription.Status)
	}

	var subCount, payCount int64
	db.Model(&models.ZoomSubscription{}).Count(&subCount)
	db.Model(&models.ZoomPayment{}).Count(&payCount)
	if subCount != 1 {
		t.Errorf("race recovery must leave a single subscription row, got %d", subCount)
	}
	if payCount != 1 {
		t.Errorf("expected one payment record, got %d", payCount)
	}
}

func TestVerifyRegistrationPaymentSameProofIdempotent(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	proof := signProof("order_1", "pay_1")
	first, err := VerifyRegistrationPayment(user, session.ID, nil, proof)
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	second, err := VerifyRegistrationPayment(user, session.ID, nil, proof)
	if err != nil {
		t.Fatalf("resubmitting a recorded proof must succeed, got %v", err)
	}
	if second.Payment == nil || second.Payment.ID != first.Payment.ID {
		t.Error("resubmission should answer with the originally recorded payment")
	}
	if second.Subscription.ID != first.Subscription.ID {
		t.Error("resubmission must not touch a different subscription row")
	}

	var subCount, payCount int64
	db.Model(&models.ZoomSubscription{}).Count(&subCount)
	db.Model(&models.ZoomPayment{}).Count(&payCount)
	if subCount != 1 || payCount != 1 {
		t.Errorf("resubmission must not create rows, got %d subs %d payments", subCount, payCount)
	}
}

func TestRejectRegistrations(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createTwoStageSession(t, db, admin, 100, 900, true)

	if _, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_reg", "pay_reg")); err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	rejected, err := RejectRegistrations(session.ID, []uuid.UUID{user.ID})
	if err != nil {
		t.Fatalf("RejectRegistrations failed: %v", err)
	}
	if rejected != 1 {
		t.Fatalf("expected 1 rejection, got %d", rejected)
	}

	var sub models.ZoomSubscription
	db.Where("user_id = ? AND zoom_session_id = ?", user.ID, session.ID).First(&sub)
	if sub.Status != models.SubscriptionStatusRejected {
		t.Errorf("expected REJECTED, got %s", sub.Status)
	}
	if _, err := CreateCourseFeeOrder(user.ID, session.ID); !errors.Is(err, ErrRegistrationRequired) {
		t.Errorf("rejected registration must not reach the course fee stage, got %v", err)
	}
}

func TestCreateSubscriptionOrderAlreadyActive(t *testing.T) {
	db := setupTestDB(t)
	stubCreateOrder(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	if _, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1")); err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	if _, err := CreateSubscriptionOrder(user.ID, session.ID, nil); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestCancelThenReregisterReusesRow(t *testing.T) {
	db := setupTestDB(t)
	stubCreateOrder(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	first, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	if _, err := CancelSubscription(first.Subscription.ID, user.ID, false); err != nil {
		t.Fatalf("CancelSubscription failed: %v", err)
	}

	order, err := CreateSubscriptionOrder(user.ID, session.ID, nil)
	if err != nil {
		t.Fatalf("renewal order failed: %v", err)
	}
	if !order.IsRenewal {
		t.Error("re-subscribing after cancel should be flagged as a renewal")
	}
	if order.PreviousSubscriptionID == nil || *order.PreviousSubscriptionID != first.Subscription.ID {
		t.Error("renewal should reference the previous subscription")
	}

	second, err := VerifyRegistrationPayment(user, session.ID, nil, signProof(order.Order.ID, "pay_2"))
	if err != nil {
		t.Fatalf("renewal verification failed: %v", err)
	}
	if !second.Reactivated {
		t.Error("expected reactivation of the existing row")
	}
	if second.Subscription.ID != first.Subscription.ID {
		t.Error("renewal must reuse the (user, session) row, not create a second one")
	}
	if second.Subscription.Status != models.SubscriptionStatusActive {
		t.Errorf("expected ACTIVE after renewal, got %s", second.Subscription.Status)
	}

	var subCount int64
	db.Model(&models.ZoomSubscription{}).Count(&subCount)
	if subCount != 1 {
		t.Errorf("expected a single subscription row, got %d", subCount)
	}
}

func TestCancelSubscriptionOwnership(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	owner := createTestUser(t, db, "owner@test.com")
	stranger := createTestUser(t, db, "stranger@test.com")
	session := createFlatSession(t, db, admin, 499)

	result, err := VerifyRegistrationPayment(owner, session.ID, nil, signProof("order_1", "pay_1"))
	if err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	if _, err := CancelSubscription(result.Subscription.ID, stranger.ID, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner cancel, got %v", err)
	}

	sub, err := CancelSubscription(result.Subscription.ID, admin.ID, true)
	if err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	if sub.Status != models.SubscriptionStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", sub.Status)
	}
}

func TestRemoveAccess(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	if _, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1")); err != nil {
		t.Fatalf("VerifyRegistrationPayment failed: %v", err)
	}

	removed, err := RemoveAccess(session.ID, []uuid.UUID{user.ID})
	if err != nil {
		t.Fatalf("RemoveAccess failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row, got %d", removed)
	}

	var sub models.ZoomSubscription
	db.Where("user_id = ? AND zoom_session_id = ?", user.ID, session.ID).First(&sub)
	if sub.HasAccessToLinks || sub.IsApproved {
		t.Error("RemoveAccess must clear approval and link access")
	}

	var payCount int64
	db.Model(&models.ZoomPayment{}).Count(&payCount)
	if payCount != 1 {
		t.Errorf("RemoveAccess must not touch payment history, got %d payments", payCount)
	}
}

func TestVerifyRegistrationInactiveSessionStillRecords(t *testing.T) {
	db := setupTestDB(t)
	stubCreateOrder(t)
	admin := createTestUser(t, db, "admin@test.com")
	user := createTestUser(t, db, "student@test.com")
	session := createFlatSession(t, db, admin, 499)

	if err := db.Model(&session).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate session: %v", err)
	}

	// New orders are refused on inactive sessions.
	if _, err := CreateSubscriptionOrder(user.ID, session.ID, nil); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}

	// But a payment already made at the gateway is still honored.
	if _, err := VerifyRegistrationPayment(user, session.ID, nil, signProof("order_1", "pay_1")); err != nil {
		t.Fatalf("in-flight payment on deactivated session should still verify: %v", err)
	}
}
