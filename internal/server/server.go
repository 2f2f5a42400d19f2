package server

import (
	"log"
	"path/filepath"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"cubie-assistant-be/internal/bootstrap"
	"cubie-assistant-be/internal/config"
	"cubie-assistant-be/internal/pkg/serverutils"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger))

	// Rendered charts are served from here; the chat widget embeds them by URL.
	app.Static("/static", cfg.App.PublicDir)

	registerRoutes(app, cfg, container)

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
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendFile(filepath.Join(cfg.App.PublicDir, "index.html"))
	})
	app.Get("/login", func(ctx *fiber.Ctx) error {
		return ctx.SendFile(filepath.Join(cfg.App.PublicDir, "login.html"))
	})

	app.Get("/health", func(ctx *fiber.Ctx) error {
		dbStatus := "connected"
		if sqlDB, err := c.DB.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "unavailable"
		}
		return ctx.JSON(fiber.Map{
			"status":          "ok",
			"database":        dbStatus,
			"smtp_configured": cfg.SMTP.Host != "" && cfg.SMTP.Email != "",
		})
	})

	api := app.Group("/api")

	c.AuthController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api)
	c.AdminController.RegisterRoutes(api)
}
