package server

import (
	"context"
	"log"
	"net/http"

	"devotion-guide-be/internal/bootstrap"
	"devotion-guide-be/internal/config"
	"devotion-guide-be/internal/pkg/serverutils"
	"devotion-guide-be/pkg/guide/conversation"
	"devotion-guide-be/pkg/guide/pipeline"
	"devotion-guide-be/pkg/guide/prompt"
	"devotion-guide-be/pkg/llm"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// errorRules maps domain sentinels to HTTP statuses.
var errorRules = []serverutils.ErrorRule{
	{Target: conversation.ErrNotFound, Status: http.StatusNotFound},
	{Target: pipeline.ErrRunNotFound, Status: http.StatusNotFound},
	{Target: conversation.ErrAccessDenied, Status: http.StatusForbidden},
	{Target: pipeline.ErrRunNotResumable, Status: http.StatusConflict},
	{Target: pipeline.ErrStopStageBehind, Status: http.StatusConflict},
	{Target: pipeline.ErrInvalidStage, Status: http.StatusBadRequest},
	{Target: pipeline.ErrMissingUser, Status: http.StatusBadRequest},
	{Target: pipeline.ErrInvalidEntrypoint, Status: http.StatusBadRequest},
	{Target: pipeline.ErrEmptyChatMessage, Status: http.StatusBadRequest},
	{Target: prompt.ErrNoPayload, Status: http.StatusBadRequest},
	{Target: conversation.ErrEmptyTurn, Status: http.StatusBadRequest},
	{Target: llm.ErrUpstream, Status: http.StatusBadGateway},
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: serverutils.NewErrorHandler(container.Logger, errorRules...),
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, X-Trace-Id",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger, errorRules...))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(container.Metrics.Registry(), promhttp.HandlerOpts{})))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(serverutils.SuccessResponse[any]("ok", nil))
	})

	// Routes
	registerRoutes(app, container, serverutils.NewJwtMiddleware(cfg.App.JwtSecret))

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container, auth fiber.Handler) {
	api := app.Group("/api")

	c.GuideController.RegisterRoutes(api, auth)
	c.ConversationController.RegisterRoutes(api, auth)
	c.DebugRunController.RegisterRoutes(api, auth)
}
