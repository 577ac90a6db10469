package system

import (
	"go-lms/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct{}

func NewDebugController() *DebugController {
	return &DebugController{}
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Echo the claims of the bearer token, including whether the admin file routes are open to it
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no claims"})
	}
	return ctx.JSON(fiber.Map{
		"user_id":     claims.UserID,
		"roles":       claims.Roles,
		"file_admin":  claims.HasRole("admin"),
		"operator_id": utils.ActorFromContext(ctx.UserContext()),
	})
}
