package integrity

import (
	"fmt"

	"go-lms/internal/common/api"
	"go-lms/internal/common/apperrors"
	"go-lms/internal/export"

	"github.com/gofiber/fiber/v2"
)

type IntegrityController struct {
	IntegrityService IntegrityService
}

func NewIntegrityController(integrityService IntegrityService) *IntegrityController {
	return &IntegrityController{
		IntegrityService: integrityService,
	}
}

// ValidateFiles godoc
// @Summary Validate file integrity
// @Description Compare stored metadata with the physical files and optionally repair stored sizes
// @Tags files
// @Accept json
// @Produce json
// @Param request body ValidateInput true "Validation request"
// @Param format query string false "json or xlsx"
// @Success 200 {object} models.OperationReport
// @Failure 400 {object} map[string]interface{}
// @Router /api/admin/files/validate [post]
func (ctrl *IntegrityController) ValidateFiles(c *fiber.Ctx) error {
	var in ValidateInput
	if len(c.Body()) > 0 {
		if err := api.ParseBody(c, &in); err != nil {
			return api.Error(c, err)
		}
	}

	report, err := ctrl.IntegrityService.Validate(c.UserContext(), in)
	if err != nil {
		return api.Error(c, err)
	}

	if c.Query("format") == "xlsx" {
		data, filename, err := Workbook(report)
		if err != nil {
			return api.Error(c, apperrors.Internal("export validation report", err))
		}
		c.Set("Content-Type", export.ContentTypeXLSX)
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		return c.Send(data)
	}
	return c.JSON(report)
}
