package jobs

import (
	"log"
	"time"

	"github.com/rishabh2304/liveclass_backend/database"
	"github.com/rishabh2304/liveclass_backend/models"
	"github.com/rishabh2304/liveclass_backend/notifications"
)

// SendClassReminders emails subscribers whose class starts in about an hour.
// The 5 minute window matches the cron cadence so each session is picked up
// exactly once.
func SendClassReminders() {
	log.Println("Running job: SendClassReminders...")

	now := time.Now()
	lowerBound := now.Add(60 * time.Minute)
	upperBound := now.Add(65 * time.Minute)

	var upcomingSessions []models.ZoomSession
	err := database.DB.
		Where("is_active = ? AND start_time BETWEEN ? AND ?", true, lowerBound, upperBound).
		Find(&upcomingSessions).Error
	if err != nil {
		log.Printf("Error checking for upcoming sessions: %v", err)
		return
	}

	if len(upcomingSessions) == 0 {
		return
	}

	for _, session := range upcomingSessions {
		var subs []models.ZoomSubscription
		err := database.DB.
			Preload("User").
			Where("zoom_session_id = ? AND status = ? AND has_access_to_links = ?",
				session.ID, models.SubscriptionStatusActive, true).
			Find(&subs).Error
		if err != nil {
			log.Printf("Error loading subscribers for session %s: %v", session.ID, err)
			continue
		}

		log.Printf("Sending %d reminders for session %s", len(subs), session.ID)
		for _, sub := range subs {
			go notifications.SendMeetingReminder(
				sub.User.FullName, sub.User.Email,
				session.Title, session.StartTime, session.ZoomLink, session.ZoomPassword,
			)
		}
	}
}
