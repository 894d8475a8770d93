// Package api wires the dashboard handlers and middleware into a fiber app.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/api/handlers"
	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/internal/middleware/ratelimit"
	"github.com/rulings-explorer/backend/internal/middleware/security"
	"github.com/rulings-explorer/backend/internal/middleware/validation"
	"github.com/rulings-explorer/backend/pkg/logger"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Engine            *dashboard.Engine
	Audit             handlers.AuditLog
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	BodyLimit         int
	RequestsPerMinute int
	Development       bool
	// AccessLog enables the fiber request logger.
	AccessLog bool
	// Ready maps a dependency name to its health check.
	Ready map[string]Pinger
}

type Server struct {
	App     *fiber.App
	limiter *ratelimit.RateLimiter
}

func New(opt Options) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "rulings-explorer",
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
		BodyLimit:    opt.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: opt.RequestsPerMinute,
		Skip: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/metrics", "/api/v1/health", "/api/v1/ready":
				return true
			}
			return false
		},
		Logger: logger.Log,
	})

	app.Use(recover.New())
	if opt.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{IsDevelopment: opt.Development}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxTerms: opt.Engine.MaxSearchTerms(),
		Logger:   logger.Log,
	}))

	dash := handlers.NewDashboardHandler(opt.Engine, opt.Audit)
	page := handlers.NewPageHandler(dash)
	ws := handlers.NewWebSocketHandler(opt.Engine)

	app.Get("/", page.Render)
	app.Get("/metrics", metrics.MetricsHandler())
	app.Use("/ws", handlers.Upgrade)
	app.Get("/ws", websocket.New(ws.HandleConnection))

	api := app.Group("/api/v1")

	api.Get("/options", dash.GetOptions)
	api.Get("/summary", dash.GetSummary)
	api.Get("/records", dash.GetRecords)
	api.Get("/export", dash.Export)
	api.Get("/terms", dash.GetTerms)
	api.Post("/search/advanced", dash.AdvancedSearch)
	api.Get("/timeline", dash.GetTimeline)
	api.Get("/dataset", dash.GetDataset)
	api.Get("/history", dash.GetHistory)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		checks := fiber.Map{"dataset": "ok"}
		status := fiber.StatusOK
		for name, p := range opt.Ready {
			if err := p.Ping(c.UserContext()); err != nil {
				logger.Warn("Dependency not ready", zap.String("dependency", name), zap.Error(err))
				checks[name] = err.Error()
				status = fiber.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		ready := "ready"
		if status != fiber.StatusOK {
			ready = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": ready,
			"rows":   opt.Engine.Dataset().Len(),
			"checks": checks,
		})
	})

	return &Server{App: app, limiter: limiter}
}

func (s *Server) Listen(addr string) error {
	return s.App.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.limiter.Stop()
	return s.App.Shutdown()
}
