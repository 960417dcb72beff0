package jobs

import (
	"log"
	"time"

	"github.com/rishabh2304/liveclass_backend/services"
)

// ProcessDueRenewals expires flat-model subscriptions whose payment window has
// lapsed. Safe to run alongside the admin-triggered sweep.
func ProcessDueRenewals() {
	log.Println("Running job: ProcessDueRenewals...")

	result, err := services.ProcessRenewals(time.Now())
	if err != nil {
		log.Printf("🔥 Renewal sweep failed: %v", err)
		return
	}

	if result.Processed > 0 || result.Failed > 0 {
		log.Printf("✅ Renewal sweep done: %d expired, %d failed", result.Processed, result.Failed)
	}
}
