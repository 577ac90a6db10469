package unused

import (
	"go-lms/internal/config"
	"go-lms/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type UnusedApi struct {
	controller *UnusedController
	config     *config.Config
}

func NewUnusedApi(controller *UnusedController, config *config.Config) *UnusedApi {
	return &UnusedApi{
		controller: controller,
		config:     config,
	}
}

func (h *UnusedApi) Setup(app *fiber.App) {
	files := app.Group("/api/admin/files", middleware.AuthMiddleware(h.config.SkipAuth), middleware.AdminMiddleware())
	files.Get("/unused", h.controller.FindUnused)
}
