package integrity

import (
	"go-lms/internal/config"
	"go-lms/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type IntegrityApi struct {
	controller *IntegrityController
	config     *config.Config
}

func NewIntegrityApi(controller *IntegrityController, config *config.Config) *IntegrityApi {
	return &IntegrityApi{
		controller: controller,
		config:     config,
	}
}

func (h *IntegrityApi) Setup(app *fiber.App) {
	files := app.Group("/api/admin/files", middleware.AuthMiddleware(h.config.SkipAuth), middleware.AdminMiddleware())
	files.Post("/validate", h.controller.ValidateFiles)
}
