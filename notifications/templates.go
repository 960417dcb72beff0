package notifications

import (
	"fmt"
	"time"
)

type SubscriptionConfirmation struct {
	SessionTitle  string
	StartTime     time.Time
	MeetingLink   string
	Password      string
	Amount        float64
	ReceiptNumber string
	PaymentID     string
}

func SendSubscriptionConfirmed(toName, toEmail string, data SubscriptionConfirmation) {
	body := fmt.Sprintf(
		"<h1>Subscription Confirmed</h1><p>Hi %s,</p><p>Your payment of ₹%.2f for <b>%s</b> was successful.</p><p>Receipt: %s (payment %s)</p>",
		toName, data.Amount, data.SessionTitle, data.ReceiptNumber, data.PaymentID,
	)
	if data.MeetingLink != "" {
		body += fmt.Sprintf(
			"<p>The class starts at %s.</p><p><b>Meeting Link:</b> <a href='%s'>Join Class</a><br/><b>Password:</b> %s</p>",
			data.StartTime.Format(time.RFC1123), data.MeetingLink, data.Password,
		)
	} else {
		body += "<p>You will receive the meeting link once your access is unlocked.</p>"
	}
	SendEmail(toName, toEmail, "Live Class Subscription Confirmed", body)
}

func SendMeetingReminder(toName, toEmail, sessionTitle string, startTime time.Time, meetingLink, password string) {
	body := fmt.Sprintf(
		"<h1>Class Reminder</h1><p>Hi %s,</p><p><b>%s</b> starts at %s.</p><p><b>Meeting Link:</b> <a href='%s'>Join Class</a><br/><b>Password:</b> %s</p>",
		toName, sessionTitle, startTime.Format(time.Kitchen), meetingLink, password,
	)
	SendEmail(toName, toEmail, fmt.Sprintf("Reminder: %s starts soon", sessionTitle), body)
}

func SendSubscriptionExpired(toName, toEmail, sessionTitle string) {
	body := fmt.Sprintf(
		"<h1>Subscription Expired</h1><p>Hi %s,</p><p>Your subscription for <b>%s</b> has expired. Subscribe again from the class page to keep attending.</p>",
		toName, sessionTitle,
	)
	SendEmail(toName, toEmail, "Your Live Class Subscription Has Expired", body)
}

func SendSubscriptionCancelled(toName, toEmail, sessionTitle string) {
	body := fmt.Sprintf(
		"<h1>Subscription Cancelled</h1><p>Hi %s,</p><p>Your subscription for <b>%s</b> has been cancelled.</p>",
		toName, sessionTitle,
	)
	SendEmail(toName, toEmail, "Your Live Class Subscription Has Been Cancelled", body)
}
