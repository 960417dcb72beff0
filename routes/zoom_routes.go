package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rishabh2304/liveclass_backend/handlers"
	"github.com/rishabh2304/liveclass_backend/middleware"
)

func ZoomRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	zoom := api.Group("/zoom", middleware.Protected())

	zoom.Get("/sessions", handlers.GetUserZoomSessions)
	zoom.Get("/session/:id", handlers.GetZoomSessionDetail)

	zoom.Post("/subscribe", handlers.CreateZoomSubscription)
	zoom.Post("/verify-payment", handlers.VerifyZoomPayment)
	zoom.Post("/pay-course-fee", handlers.CreateCourseFeeOrderHandler)
	zoom.Post("/verify-course-fee", handlers.VerifyCourseFeePaymentHandler)

	zoom.Get("/check-subscription/:zoomSessionId", handlers.CheckZoomSubscription)
	zoom.Get("/check-payment-status/:zoomSessionId", handlers.CheckPaymentStatus)

	zoom.Get("/my-subscriptions", handlers.GetMyZoomSubscriptions)
	zoom.Post("/cancel-subscription/:subscriptionId", handlers.CancelZoomSubscription)

	zoom.Get("/receipt/:paymentId", handlers.GenerateZoomReceipt)
}
