package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rishabh2304/liveclass_backend/handlers"
	"github.com/rishabh2304/liveclass_backend/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/zoom/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Post("/session", handlers.CreateZoomSession)
	admin.Put("/session/:id", handlers.UpdateZoomSession)
	admin.Delete("/session/:id", handlers.DeleteZoomSession)
	admin.Get("/sessions", handlers.GetAllZoomSessions)

	admin.Get("/:zoomSessionId/attendees", handlers.GetZoomSessionAttendees)
	admin.Post("/:zoomSessionId/send-reminders", handlers.SendMeetingReminders)
	admin.Post("/:zoomSessionId/approve-registrations", handlers.ApproveRegistrationsHandler)
	admin.Post("/:zoomSessionId/reject-registrations", handlers.RejectRegistrationsHandler)
	admin.Post("/:zoomSessionId/remove-access", handlers.RemoveAccessHandler)
	admin.Put("/:zoomSessionId/toggle-course-fee", handlers.ToggleCourseFee)

	admin.Post("/process-renewals", handlers.ProcessZoomRenewals)

	admin.Get("/payments", handlers.GetAllZoomPayments)
	admin.Get("/subscriptions", handlers.GetAllZoomSubscriptions)
	admin.Post("/cancel-subscription/:id", handlers.AdminCancelZoomSubscription)

	admin.Get("/analytics", handlers.GetZoomAnalytics)
}
