package file

import (
	"go-lms/internal/config"
	"go-lms/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type FileApi struct {
	controller *FileController
	config     *config.Config
}

func NewFileApi(controller *FileController, config *config.Config) *FileApi {
	return &FileApi{
		controller: controller,
		config:     config,
	}
}

func (h *FileApi) Setup(app *fiber.App) {
	assets := app.Group("/api/admin/assets", middleware.AuthMiddleware(h.config.SkipAuth), middleware.AdminMiddleware())

	assets.Post("/", h.controller.UploadFile)
	assets.Get("/:id", h.controller.GetFile)
	assets.Get("/:id/download", h.controller.DownloadFile)
	assets.Get("/:id/references", h.controller.GetReferences)

	app.Static(h.config.StorageURL, h.config.StoragePath)
}
