package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Soule73/evalium-sub002/internal/config"
	"github.com/Soule73/evalium-sub002/internal/handler"
	"github.com/Soule73/evalium-sub002/internal/middleware"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttemptHandler    *handler.AttemptHandler
	AssessmentHandler *handler.AssessmentHandler
	GradingHandler    *handler.GradingHandler
	StatsHandler      *handler.StatsHandler
	GradesHandler     *handler.GradesHandler
	MonitorHandler    *handler.MonitorHandler
	ActivityHandler   *handler.ActivityHandler
	HealthProbes      map[string]handler.HealthProbe
	JWTMiddleware     fiber.Handler
	// ViolationLimit caps violation reports per student and window. Zero disables the limit.
	ViolationLimit  int
	ViolationWindow time.Duration
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	student := api.Group("/student", jwtMiddleware, middleware.RequireRole(service.RoleStudent))
	if deps.ViolationLimit > 0 {
		window := deps.ViolationWindow
		if window <= 0 {
			window = time.Minute
		}
		student.Use("/assignments/:id/violations", middleware.RateLimit("violations", deps.ViolationLimit, window))
	}
	if deps.AttemptHandler != nil {
		deps.AttemptHandler.Register(student)
	}
	if deps.GradesHandler != nil {
		deps.GradesHandler.RegisterSelf(student.Group("/grades"))
	}

	teacher := api.Group("/teacher", jwtMiddleware, middleware.RequireRole(service.RoleTeacher, service.RoleAdmin))
	if deps.AssessmentHandler != nil {
		deps.AssessmentHandler.Register(teacher.Group("/assessments"))
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(teacher.Group("/assignments"))
	}
	if deps.StatsHandler != nil {
		deps.StatsHandler.Register(teacher.Group("/stats"))
	}
	if deps.GradesHandler != nil {
		deps.GradesHandler.Register(teacher.Group("/grades"))
	}
	if deps.MonitorHandler != nil {
		deps.MonitorHandler.Register(teacher.Group("/monitor"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(teacher.Group("/activity"))
	}
}
