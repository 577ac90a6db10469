package bulk_operation

import (
	"go-lms/internal/common/api"
	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type BulkOperationController struct {
	BulkService BulkOperationService
}

func NewBulkOperationController(bulkService BulkOperationService) *BulkOperationController {
	return &BulkOperationController{
		BulkService: bulkService,
	}
}

// respond answers 207 when the report carries a partial failure.
func respond(c *fiber.Ctx, report *models.OperationReport, err error) error {
	if err != nil {
		if report != nil && apperrors.Is(err, apperrors.KindPartialBatch) {
			return c.Status(fiber.StatusMultiStatus).JSON(report)
		}
		return api.Error(c, err)
	}
	return c.JSON(report)
}

// DeleteFiles godoc
// @Summary Bulk delete files
// @Description Delete files selected by ids or filter under the reference handling policy
// @Tags files
// @Accept json
// @Produce json
// @Param request body DeleteInput true "Delete request"
// @Success 200 {object} models.OperationReport
// @Success 207 {object} models.OperationReport
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/admin/files/delete [post]
func (ctrl *BulkOperationController) DeleteFiles(c *fiber.Ctx) error {
	var in DeleteInput
	if err := api.ParseBody(c, &in); err != nil {
		return api.Error(c, err)
	}
	report, err := ctrl.BulkService.Delete(c.UserContext(), in)
	return respond(c, report, err)
}

// MoveFiles godoc
// @Summary Bulk move files
// @Description Move files to a category and/or directory resolving name conflicts
// @Tags files
// @Accept json
// @Produce json
// @Param request body MoveInput true "Move request"
// @Success 200 {object} models.OperationReport
// @Success 207 {object} models.OperationReport
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/admin/files/move [post]
func (ctrl *BulkOperationController) MoveFiles(c *fiber.Ctx) error {
	var in MoveInput
	if err := api.ParseBody(c, &in); err != nil {
		return api.Error(c, err)
	}
	report, err := ctrl.BulkService.Move(c.UserContext(), in)
	return respond(c, report, err)
}

// OrganizeFiles godoc
// @Summary Organize files
// @Description Regroup, retag and rename files
// @Tags files
// @Accept json
// @Produce json
// @Param request body OrganizeInput true "Organize request"
// @Success 200 {object} models.OperationReport
// @Success 207 {object} models.OperationReport
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/files/organize [post]
func (ctrl *BulkOperationController) OrganizeFiles(c *fiber.Ctx) error {
	var in OrganizeInput
	if err := api.ParseBody(c, &in); err != nil {
		return api.Error(c, err)
	}
	report, err := ctrl.BulkService.Organize(c.UserContext(), in)
	return respond(c, report, err)
}
