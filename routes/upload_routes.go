package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rishabh2304/liveclass_backend/handlers"
	"github.com/rishabh2304/liveclass_backend/middleware"
)

func UploadRoutes(app *fiber.App) {
	api := app.Group("/api/v1", middleware.Protected(), middleware.AdminRequired())

	uploads := api.Group("/uploads")
	uploads.Get("/signature", handlers.GenerateUploadSignature)
}
