package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"md2html/internal/config"
	"md2html/internal/domain"
	"md2html/internal/http/middleware"
	"md2html/internal/infra/cache"
	"md2html/internal/infra/logging"
	"md2html/internal/markdown"
	"md2html/internal/render"
)

// RequestObserver records the outcome and duration of each render request.
type RequestObserver interface {
	ObserveRequest(outcome string, took time.Duration)
	cache.LookupObserver
}

// RenderService bundles configuration and dependencies for Markdown rendering.
type RenderService struct {
	Config   *config.Config
	Cache    cache.Store
	Observer RequestObserver

	handler *render.Handler
}

// HandleMarkdownRender returns a Fiber handler for render requests.
func HandleMarkdownRender(cfg config.Config, store cache.Store) fiber.Handler {
	svc := NewRenderService(cfg, store, nil)
	return svc.HandleRender
}

// NewRenderService creates a new RenderService instance. store and observer
// may be nil; a nil store, or cfg.Cache.Enabled false, renders uncached.
func NewRenderService(cfg config.Config, store cache.Store, observer RequestObserver) *RenderService {
	svc := &RenderService{
		Config:   &cfg,
		Cache:    store,
		Observer: observer,
	}

	var conv render.Converter = markdown.New(cfg.Markdown)
	if store != nil && cfg.Cache.Enabled {
		var lookups cache.LookupObserver
		if observer != nil {
			lookups = observer
		}
		conv = cache.NewConverter(markdown.New(cfg.Markdown), store, cfg.Cache.TTL, lookups)
	}
	svc.handler = render.NewHandler(conv, render.Options{AllowGetNoop: cfg.Server.AllowGetNoop})
	return svc
}

// HandleRender converts the "data" field of a JSON body from Markdown to HTML.
//
// Every verb is routed here so the render handler decides between the
// no-op, the 400 and a render. Faults are returned as plain errors and
// left to the app's error handler.
func (svc *RenderService) HandleRender(c *fiber.Ctx) error {
	start := time.Now()
	resp, err := svc.handler.Handle(c.Method(), c.Body())
	outcome := render.Classify(resp, err)
	if svc.Observer != nil {
		svc.Observer.ObserveRequest(string(outcome), time.Since(start))
	}

	requestID := middleware.RequestID(c)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedJSON) {
			logging.Warn("Malformed render request", "error", err, "request_id", requestID)
		} else {
			logging.Error("Markdown rendering failed", "error", err, "request_id", requestID)
		}
		return err
	}

	if outcome == render.OutcomeRendered {
		logging.Info("Markdown rendered", "bytes_in", len(c.Body()), "bytes_out", len(resp.Body), "request_id", requestID)
	}

	c.Status(resp.Status)
	if len(resp.Body) == 0 {
		return nil
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resp.Body)
}
