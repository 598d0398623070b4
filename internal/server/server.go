// Package server contains the HTTP handlers and routing for the web app.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"haven/internal/auth"
	"haven/internal/cache"
	"haven/internal/config"
	"haven/internal/database"
	"haven/internal/mail"
	"haven/internal/middleware"
	"haven/internal/repository"
	"haven/internal/service"
	"haven/internal/session"
	"haven/internal/storage"
	"haven/web/static"
	"haven/web/templates"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *session.Manager
	avatars        *storage.AvatarStore
	accounts       *service.AccountService
	chat           *service.ChatService
	journals       *service.JournalService
}

// NewServer creates a server instance, connecting to the database and Redis.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	mailer, err := mail.NewMailer(cfg)
	if err != nil {
		return nil, fmt.Errorf("mailer setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, mailer, service.NewScriptedResponder())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this with an in-memory database, miniredis and a fake mailer.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mailer mail.Mailer, responder service.Responder) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	journalRepo := repository.NewJournalRepository(db)

	var store session.Store
	if redisClient != nil {
		store = session.NewRedisStore(redisClient)
	} else {
		// Sessions fall back to process memory; they are lost on restart.
		store = session.NewMemoryStore()
	}

	hasher := auth.NewPasswordHasher()
	codec := auth.NewResetTokenCodec(cfg.SecretKey, cfg.ResetTokenTTL())
	avatars := storage.NewAvatarStore(cfg.AvatarDir, cfg.AvatarMaxUploadSizeMB)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("haven-web"),
		sessions:       session.NewManager(store, cfg.SessionTTL(), cfg.RememberTTL()),
		avatars:        avatars,
		accounts:       service.NewAccountService(db, userRepo, hasher, codec, mailer, avatars, cfg.BaseURL),
		chat:           service.NewChatService(chatRepo, responder),
		journals:       service.NewJournalService(journalRepo),
	}
	return server, nil
}

// newApp builds the Fiber application with the embedded view engine.
func (s *Server) newApp() *fiber.App {
	engine := html.NewFileSystem(http.FS(templates.FS), ".html")

	app := fiber.New(fiber.Config{
		AppName:      "Haven",
		Views:        engine,
		ViewsLayout:  "layouts/main",
		ErrorHandler: s.errorHandler,
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Resolve the session cookie early so user_id reaches the logger
	app.Use(s.sessions.Resolve())

	// Structured logging (after requestid, context and session middleware)
	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Embedded static assets
	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(static.FS),
		MaxAge: 3600,
	}))

	// Public pages
	app.Get("/", s.Home)
	app.Get("/about", s.About)
	app.Get("/sos", s.SOS)

	// Profile images are public so the browser can load them without
	// cookie games; references are unguessable UUIDs.
	app.Get("/media/avatars/:ref", s.Avatar)

	// Anonymous-only auth pages
	anon := s.sessions.RedirectIfAuthenticated()
	app.Get("/register", anon, s.ShowRegister)
	app.Post("/register", anon, middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.Register)
	app.Get("/login", anon, s.ShowLogin)
	app.Post("/login", anon, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// GET kept for old bookmarked links, POST is what the nav form uses.
	app.Get("/logout", s.Logout)
	app.Post("/logout", s.Logout)

	// Password reset flow (anonymous, token-gated)
	app.Get("/reset_password", anon, s.ShowResetRequest)
	app.Post("/reset_password", anon, middleware.RateLimit(
		s.redis, 3, 15*time.Minute, "reset_request"), s.RequestReset)
	app.Get("/reset_password/:token", anon, s.ShowResetForm)
	app.Post("/reset_password/:token", anon, middleware.RateLimit(
		s.redis, 5, 15*time.Minute, "reset_complete"), s.CompleteReset)

	// Routes requiring a logged-in session
	protected := app.Group("", s.sessions.RequireLogin())
	protected.Get("/account", s.ShowAccount)
	protected.Post("/account", s.UpdateAccount)
	protected.Post("/delete_conversation", s.DeleteConversation)
	protected.Post("/delete_account", s.DeleteAccount)

	protected.Get("/chat", s.ShowChat)
	protected.Post("/chat", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_chat"), s.SendChat)

	protected.Get("/journal", s.ShowJournal)
	protected.Post("/journal", s.AddJournalEntry)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
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
		// The app runs without Redis, with in-memory sessions and no cache.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the Fiber app and begins serving.
func (s *Server) Start() error {
	s.app = s.newApp()
	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err.Error())
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr.Error())
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr.Error())
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
