package system

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthApi struct {
	controller *HealthController
}

func NewHealthApi(controller *HealthController) *HealthApi {
	return &HealthApi{
		controller: controller,
	}
}

// Setup registers the probes and the prometheus endpoint. They are unauthenticated.
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.controller.Live)
	app.Get("/health/ready", h.controller.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
