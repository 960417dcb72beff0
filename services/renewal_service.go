package services

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/notifications"
)

type RenewalDetail struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Status         string    `json:"status"`
	User           string    `json:"user,omitempty"`
	Session        string    `json:"session,omitempty"`
	Error          string    `json:"error,omitempty"`
}

type RenewalResult struct {
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
	Details   []RenewalDetail `json:"details"`
}

// ProcessRenewals expires flat-model subscriptions whose payment date has
// passed; no auto-charge is attempted. Each row carries a guarded update on
// its status so re-running the sweep (or two sweeps racing) expires a row at
// most once.
func ProcessRenewals(now time.Time) (*RenewalResult, error) {
	var due []models.ZoomSubscription
	err := database.DB.
		Preload("User").
		Preload("ZoomSession").
		Joins("JOIN zoom_sessions ON zoom_sessions.id = zoom_subscriptions.zoom_session_id").
		Where("zoom_subscriptions.status = ? AND zoom_sessions.course_fee_enabled = ? AND zoom_subscriptions.next_payment_date <= ?",
			models.SubscriptionStatusActive, false, now).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	result := &RenewalResult{Details: []RenewalDetail{}}

	for _, sub := range due {
		res := database.DB.Model(&models.ZoomSubscription{}).
			Where("id = ? AND status = ?", sub.ID, models.SubscriptionStatusActive).
			Updates(map[string]interface{}{
				"status":              models.SubscriptionStatusExpired,
				"end_date":            now,
				"has_access_to_links": false,
			})
		if res.Error != nil {
			result.Failed++
			result.Details = append(result.Details, RenewalDetail{
				SubscriptionID: sub.ID,
				Status:         "failed",
				Error:          res.Error.Error(),
			})
			continue
		}
		if res.RowsAffected == 0 {
			// Another sweep already expired it.
			continue
		}

		result.Processed++
		result.Details = append(result.Details, RenewalDetail{
			SubscriptionID: sub.ID,
			Status:         "expired",
			User:           sub.User.Email,
			Session:        sub.ZoomSession.Title,
		})

		go notifications.SendSubscriptionExpired(sub.User.FullName, sub.User.Email, sub.ZoomSession.Title)
	}

	if result.Processed > 0 || result.Failed > 0 {
		log.Printf("Renewal sweep: %d expired, %d failed", result.Processed, result.Failed)
	}

	return result, nil
}
