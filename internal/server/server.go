// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"eslive/internal/cache"
	"eslive/internal/config"
	"eslive/internal/database"
	"eslive/internal/identity"
	"eslive/internal/middleware"
	"eslive/internal/mirror"
	"eslive/internal/models"
	"eslive/internal/notifications"
	"eslive/internal/observability"
	"eslive/internal/repository"
	"eslive/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tracingStop    func(context.Context) error

	gateway   store.Gateway
	creds     repository.CredentialRepository
	identity  *identity.Service
	federated *identity.Federated

	settings *mirror.SettingsMirror
	chat     *mirror.ChatMirror
	session  *mirror.SessionMirror

	notifier *notifications.Notifier
	hub      *notifications.Hub
	bridge   *notifications.Bridge
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	var gw store.Gateway
	if redisClient != nil {
		gw = store.NewRedisStore(redisClient)
	} else {
		// Single-instance fallback; documents do not survive restarts.
		gw = store.NewMemoryStore()
	}

	return NewServerWithDeps(cfg, db, redisClient, gw)
}

// NewServerWithDeps creates a Server using already-initialized
// dependencies. Use this in tests or when a bootstrap layer establishes
// DB/Redis and the store gateway.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, gw store.Gateway) (*Server, error) {
	middleware.InitMiddleware(cfg)

	creds := repository.NewCredentialRepository(db)
	idService := identity.NewService(creds, cfg.JWTSecret)
	federated := identity.NewFederated(idService, cfg.OAuthCallbackBase, map[string]identity.FederatedCredentials{
		identity.ProviderGoogle:   {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		identity.ProviderFacebook: {ClientID: cfg.FacebookClientID, ClientSecret: cfg.FacebookClientSecret},
	})

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("eslive-api"),
		gateway:        gw,
		creds:          creds,
		identity:       idService,
		federated:      federated,
		settings:       mirror.NewSettingsMirror(gw),
		chat:           mirror.NewChatMirror(gw, cfg.ChatExpiryDelete),
		session:        mirror.NewSessionMirror(gw, idService),
	}

	server.hub = notifications.NewHub(redisClient)
	server.bridge = notifications.NewBridge(server.hub, server.settings, server.chat)
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and UID
	app.Use(middleware.ContextMiddleware())

	// Distributed tracing
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "ES Live Backend Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/reset-password", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "reset_password"), s.ResetPassword)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)
	auth.Get("/oauth/:provider", s.OAuthBegin)
	auth.Get("/oauth/:provider/callback", s.OAuthCallback)

	// Settings routes
	settings := api.Group("/settings")
	settings.Get("/", s.GetSettings)
	settings.Get("/display", s.GetDisplayState)
	settings.Put("/", middleware.AuthRequired, s.adminGate(), s.UpdateSettings)

	// Chat routes
	chat := api.Group("/chat")
	chat.Get("/messages", s.GetChatMessages)
	chat.Post("/messages", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 30, time.Minute, "send_chat"), s.SendChatMessage)
	chat.Delete("/messages/:id", middleware.AuthRequired, s.DeleteChatMessage)
	chat.Delete("/messages", middleware.AuthRequired, s.adminGate(), s.ClearChatMessages)

	// User routes
	users := api.Group("/users", middleware.AuthRequired)
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/me/refresh", s.RefreshMyProfile)

	// Site image routes
	images := api.Group("/images")
	images.Get("/:name", s.GetSiteImage)
	images.Put("/:name", middleware.AuthRequired, s.adminGate(), s.PutSiteImage)

	// Audience size
	api.Get("/viewers", s.GetViewerCount)

	// Websocket endpoint
	api.Get("/ws", middleware.WebSocketAuthRequired, s.WebsocketHandler())
}

// adminGate builds the admin middleware over the stored user record, so
// a role change takes effect without reissuing tokens.
func (s *Server) adminGate() fiber.Handler {
	return middleware.AdminRequired(func(c *fiber.Ctx, uid string) (string, error) {
		rec, err := s.session.Record(c.Context(), uid)
		if err != nil {
			if appErr, ok := err.(*models.AppError); ok && appErr.Code == "NOT_FOUND" {
				// No profile record yet: not an admin.
				return models.RoleUser, nil
			}
			return "", err
		}
		return rec.Role, nil
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	mirrorStatus := "healthy"
	if !s.settings.Loaded() {
		mirrorStatus = "loading"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" || mirrorStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"mirrors":  mirrorStatus,
		},
		"time": time.Now(),
	})
}

// StartMirrors boots the mirrors and the hub bridge. Must be called
// before Start so handlers never observe an unstarted mirror.
func (s *Server) StartMirrors(ctx context.Context) error {
	if err := s.settings.Start(ctx); err != nil {
		return fmt.Errorf("settings mirror: %w", err)
	}
	if err := s.chat.Start(ctx); err != nil {
		return fmt.Errorf("chat mirror: %w", err)
	}
	if err := s.session.Start(ctx); err != nil {
		return fmt.Errorf("session mirror: %w", err)
	}
	s.bridge.Start()
	return nil
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	tracingStop, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "eslive-api",
		ServiceVersion: "1.0.0",
		Environment:    s.config.Env,
		Enabled:        s.config.TracingEnabled,
		Exporter:       s.config.TracingExporter,
		OTLPEndpoint:   s.config.TracingOTLPTarget,
		SamplerRatio:   s.config.TracingSampleRatio,
	})
	if err != nil {
		cancel()
		return err
	}
	s.tracingStop = tracingStop

	app := fiber.New(fiber.Config{
		AppName:   "ES Live API",
		BodyLimit: 4 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if err := s.StartMirrors(ctx); err != nil {
		cancel()
		return err
	}

	// Wire the hub to the Redis subscriber if available
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start hub wiring: %v", err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	s.bridge.Stop()
	s.session.Stop()
	s.chat.Stop()
	s.settings.Stop()

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down hub: %v", err)
	}

	if s.tracingStop != nil {
		if terr := s.tracingStop(ctx); terr != nil {
			log.Printf("error shutting down tracing: %v", terr)
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Printf("error closing sql DB: %v", cerr)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
