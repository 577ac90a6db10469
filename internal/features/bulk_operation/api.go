package bulk_operation

import (
	"go-lms/internal/config"
	"go-lms/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type BulkOperationApi struct {
	BulkController *BulkOperationController
	Config         *config.Config
}

func NewBulkOperationApi(bulkController *BulkOperationController, config *config.Config) *BulkOperationApi {
	return &BulkOperationApi{
		BulkController: bulkController,
		Config:         config,
	}
}

func (api *BulkOperationApi) Setup(app *fiber.App) {
	group := app.Group("/api/admin/files", middleware.AuthMiddleware(api.Config.SkipAuth), middleware.AdminMiddleware())

	group.Post("/delete", api.BulkController.DeleteFiles)
	group.Post("/move", api.BulkController.MoveFiles)
	group.Post("/organize", api.BulkController.OrganizeFiles)
}
