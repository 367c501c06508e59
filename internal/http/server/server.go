package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"md2html/internal/config"
	"md2html/internal/http/handlers"
	"md2html/internal/http/middleware"
	"md2html/internal/infra/cache"
	"md2html/internal/infra/logging"
	"md2html/internal/infra/metrics"
)

// Deps are the collaborators the app is built from. Cache and Metrics may be nil.
type Deps struct {
	Config  config.Config
	Cache   cache.Store
	Metrics *metrics.Recorder
}

// New creates and configures a new Fiber app instance.
func New(deps Deps) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg, "request_id", middleware.RequestID(c))

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg, readiness(deps.Cache, cfg.Cache.Enabled))
	RegisterRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	var observer handlers.RequestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	svc := handlers.NewRenderService(deps.Config, deps.Cache, observer)

	app.All("/", svc.HandleRender)
	app.All("/v1/render", svc.HandleRender)

	app.Get("/ops/monitor", monitor.New())

	if deps.Metrics != nil && deps.Config.Metrics.Enabled {
		app.Get(deps.Config.Metrics.Path, adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
}

// HTTPHandler exposes the app as a net/http handler, for hosts that call a
// plain http.HandlerFunc instead of running the Fiber listener.
func HTTPHandler(app *fiber.App) http.HandlerFunc {
	return adaptor.FiberApp(app)
}

func readiness(store cache.Store, enabled bool) func(*fiber.Ctx) bool {
	if store == nil || !enabled {
		return nil
	}
	return func(c *fiber.Ctx) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logging.Warn("Cache not ready", "error", err)
			return false
		}
		return true
	}
}
