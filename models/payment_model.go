package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payments are only recorded after a verified proof, so COMPLETED is the
// only status ever written.
const PaymentStatusCompleted = "COMPLETED"

const (
	PaymentTypeRegistration = "REGISTRATION"
	PaymentTypeCourseFee    = "COURSE_FEE"
	PaymentTypeSubscription = "SUBSCRIPTION"
)

// ZoomPayment is an append-only record of one verified gateway transaction.
// Rows are only ever created after signature verification and never updated;
// they go away only when the parent session is deleted.
type ZoomPayment struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID         uuid.UUID `gorm:"not null;index" json:"userId"`
	SubscriptionID uuid.UUID `gorm:"not null;index" json:"subscriptionId"`

	Amount   float64 `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string  `gorm:"size:3;not null;default:'INR'" json:"currency"`

	RazorpayOrderID   string `gorm:"size:255;not null" json:"razorpay_order_id"`
	RazorpayPaymentID string `gorm:"size:255;not null;unique" json:"razorpay_payment_id"`
	RazorpaySignature string `gorm:"size:255;not null" json:"-"`

	ReceiptNumber string `gorm:"size:20;not null" json:"receiptNumber"`
	PaymentType   string `gorm:"size:20;not null" json:"paymentType"`
	Status        string `gorm:"size:20;not null" json:"status"`

	User         User             `gorm:"foreignkey:UserID" json:"user,omitempty"`
	Subscription ZoomSubscription `gorm:"foreignkey:SubscriptionID" json:"subscription,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *ZoomPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
