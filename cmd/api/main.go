package main

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "go-lms/docs" // Import swagger docs
	common_api "go-lms/internal/common/api"
	"go-lms/internal/config"
	"go-lms/internal/database"
	"go-lms/internal/dispatch"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/bulk_operation"
	"go-lms/internal/features/file"
	"go-lms/internal/features/integrity"
	"go-lms/internal/features/policy"
	"go-lms/internal/features/reference"
	"go-lms/internal/features/relocation"
	"go-lms/internal/features/system"
	"go-lms/internal/features/unused"
	"go-lms/internal/logger"
	"go-lms/internal/metrics"
	"go-lms/internal/middleware"
	"go-lms/internal/storage"
	"go-lms/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             256 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())
	app.Use(metrics.Middleware())

	utils.SetSecret(cfg.JWTSecret)
	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("type", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, fileRepo file.FileRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := fileRepo.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure file indexes", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

// CountDroppedTasks exports tasks the dispatch queue had to reject.
func CountDroppedTasks(queue *dispatch.Queue) {
	queue.OnDrop(metrics.DispatchDropped)
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,

			logger.NewLogger,

			NewFiberServer,

			database.NewDatabase,
			storage.NewStore,
			dispatch.NewDispatchQueue,

			file.NewFileRepository,
			audit.NewAuditRepository,
			reference.NewRegistryFromDB,

			reference.NewReferenceScanner,
			policy.NewPolicyEngine,
			relocation.NewMover,
			bulk_operation.NewBulkExecutor,
			integrity.NewValidator,
			unused.NewUnusedFinder,

			audit.NewAuditService,
			file.NewFileService,
			bulk_operation.NewBulkOperationService,
			integrity.NewIntegrityService,
			unused.NewUnusedService,

			file.NewFileController,
			audit.NewAuditController,
			bulk_operation.NewBulkOperationController,
			integrity.NewIntegrityController,
			unused.NewUnusedController,
			system.NewHealthController,
			system.NewDebugController,

			AsRoute(file.NewFileApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(bulk_operation.NewBulkOperationApi),
			AsRoute(integrity.NewIntegrityApi),
			AsRoute(unused.NewUnusedApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			CountDroppedTasks,
			RegisterAllRoutesWithAnnotation,
			StartServer,
			integrity.RegisterSweep,
			InitializeIndexes,
		),
	)

	app.Run()
}
