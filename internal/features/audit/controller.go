package audit

import (
	"strconv"

	"go-lms/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

// ListLogs godoc
// @Summary List file audit lines
// @Tags files
// @Produce json
// @Param module query string false "Collection name"
// @Param record_id query string false "Record ID"
// @Param action query string false "Audit action"
// @Param operation_id query string false "Bulk operation ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {array} models.AuditLog
// @Router /api/admin/files/audit [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	query := Query{
		Module:      c.Query("module"),
		RecordID:    c.Query("record_id"),
		Action:      c.Query("action"),
		OperationID: c.Query("operation_id"),
		ActorID:     c.Query("actor_id"),
	}

	logs, err := ctrl.Service.ListLogs(c.UserContext(), query, page, limit)
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(logs)
}
