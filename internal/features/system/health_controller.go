package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-lms/internal/config"
	"go-lms/internal/database"

	"github.com/gofiber/fiber/v2"
)

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// ReadinessChecker reports whether one dependency can serve requests.
type ReadinessChecker interface {
	Name() string
	CheckReady(ctx context.Context) (status, message string)
}

type mongoChecker struct {
	db *database.MongodbDB
}

func (m mongoChecker) Name() string { return "mongodb" }

func (m mongoChecker) CheckReady(ctx context.Context) (string, string) {
	if m.db == nil || m.db.Client == nil {
		return statusFail, "not initialized"
	}
	if err := m.db.Client.Ping(ctx, nil); err != nil {
		return statusFail, err.Error()
	}
	return statusOK, ""
}

// dirChecker verifies a storage directory exists.
type dirChecker struct {
	name string
	path string
}

func (d dirChecker) Name() string { return d.name }

func (d dirChecker) CheckReady(ctx context.Context) (string, string) {
	fi, err := os.Stat(d.path)
	if err != nil {
		return statusFail, err.Error()
	}
	if !fi.IsDir() {
		return statusFail, fmt.Sprintf("%s is not a directory", d.path)
	}
	return statusOK, ""
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthController struct {
	checkers []ReadinessChecker
	appID    string
	started  time.Time
}

func NewHealthController(db *database.MongodbDB, cfg *config.Config) *HealthController {
	return NewHealthControllerWith(cfg.AppId,
		mongoChecker{db: db},
		dirChecker{name: "storage", path: cfg.StoragePath},
		dirChecker{name: "backups", path: cfg.BackupPath},
	)
}

func NewHealthControllerWith(appID string, checkers ...ReadinessChecker) *HealthController {
	return &HealthController{checkers: checkers, appID: appID, started: time.Now()}
}

// Live godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthController) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    statusOK,
		"service":   h.appID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks MongoDB and the storage directories
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (h *HealthController) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	overall := statusOK
	checks := make(map[string]checkResult, len(h.checkers))
	for _, checker := range h.checkers {
		status, msg := checker.CheckReady(ctx)
		checks[checker.Name()] = checkResult{Status: status, Message: msg}
		if status == statusFail {
			overall = statusFail
		}
	}

	code := fiber.StatusOK
	if overall == statusFail {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    overall,
		"service":   h.appID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
