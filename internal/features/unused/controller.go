package unused

import (
	"fmt"

	"go-lms/internal/common/api"
	"go-lms/internal/common/apperrors"
	"go-lms/internal/export"

	"github.com/gofiber/fiber/v2"
)

type UnusedController struct {
	UnusedService UnusedService
}

func NewUnusedController(unusedService UnusedService) *UnusedController {
	return &UnusedController{
		UnusedService: unusedService,
	}
}

// FindUnused godoc
// @Summary Find unused files
// @Description List files with no references that are older than the grace period
// @Tags files
// @Produce json
// @Param grace_period query string false "Go duration, default 24h"
// @Param category query string false "Category"
// @Param mime_type query string false "MIME type or prefix ending in /"
// @Param limit query int false "Maximum files listed"
// @Param format query string false "json or xlsx"
// @Success 200 {object} Result
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/files/unused [get]
func (ctrl *UnusedController) FindUnused(c *fiber.Ctx) error {
	var in UnusedInput
	if err := c.QueryParser(&in); err != nil {
		return api.Error(c, apperrors.Validation("invalid query: %v", err))
	}
	if err := c.QueryParser(&in.FilterInput); err != nil {
		return api.Error(c, apperrors.Validation("invalid filter: %v", err))
	}
	if err := api.ValidateStruct(&in); err != nil {
		return api.Error(c, err)
	}

	result, err := ctrl.UnusedService.FindUnused(c.UserContext(), in)
	if err != nil {
		return api.Error(c, err)
	}

	if c.Query("format") == "xlsx" {
		data, filename, err := Workbook(result)
		if err != nil {
			return api.Error(c, apperrors.Internal("export unused files", err))
		}
		c.Set("Content-Type", export.ContentTypeXLSX)
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		return c.Send(data)
	}
	return c.JSON(result)
}
