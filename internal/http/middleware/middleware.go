package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"md2html/internal/config"
	"md2html/internal/infra/logging"
)

const (
	HealthPath = "/ops/health"
	ReadyPath  = "/ops/ready"
)

// RequestID returns the id assigned to the current request.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

// Register attaches global middleware to the app. ready backs the
// readiness endpoint; nil means always ready.
func Register(app *fiber.App, cfg config.Config, ready healthcheck.HealthChecker) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	if ready == nil {
		ready = func(*fiber.Ctx) bool { return true }
	}
	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  HealthPath,
		ReadinessEndpoint: ReadyPath,
		ReadinessProbe:    ready,
	}))

	app.Use(requestLogger(cfg))
}

// requestLogger logs one line per request once the handler chain returns.
// Ops endpoints are skipped to keep probes and scrapes out of the log.
func requestLogger(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/ops/") || (cfg.Metrics.Enabled && c.Path() == cfg.Metrics.Path) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		logging.Info("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(c),
		)
		return err
	}
}
