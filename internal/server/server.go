// Package server exposes the reelhub services over HTTP.
package server

import (
	"context"
	"log/slog"
	"time"

	"reelhub/internal/bootstrap"
	"reelhub/internal/config"
	"reelhub/internal/featureflags"
	"reelhub/internal/middleware"
	"reelhub/internal/models"
	"reelhub/internal/notifications"
	"reelhub/internal/repository"
	"reelhub/internal/service"
	"reelhub/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	assets         storage.AssetStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	hub            *notifications.Hub
	stopStreams    context.CancelFunc

	users         *service.UserService
	posts         *service.PostService
	comments      *service.CommentService
	relationships *service.RelationshipService
	notifications *service.NotificationService
	audit         *service.AuditService
}

// NewServer connects to the database, Redis and object storage described by
// cfg and wires the service graph on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Assets)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with sqlite and miniredis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, assets storage.AssetStore) (*Server, error) {
	if assets == nil {
		assets = storage.Noop{}
	}
	flags := featureflags.NewManager(cfg.FeatureFlags)

	opts := service.OptionsFromConfig(cfg, assets)
	opts.NotifyGate = func(recipientID uint) bool {
		return flags.Enabled(featureflags.Notifications, recipientID)
	}

	hub := notifications.NewHub()
	opts.Publisher = hub
	streamCtx, stopStreams := context.WithCancel(context.Background())
	if redisClient != nil {
		pub := notifications.NewPublisher(redisClient)
		if err := hub.StartWiring(streamCtx, pub); err != nil {
			middleware.Logger.Warn("notification fan-out unavailable, delivering locally", slog.String("error", err.Error()))
		} else {
			opts.Publisher = pub
		}
	}
	svc := service.New(repository.New(db), opts)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		assets:         assets,
		promMiddleware: middleware.InitMetrics("reelhub-api"),
		featureFlags:   flags,
		hub:            hub,
		stopStreams:    stopStreams,
		users:          svc.Users,
		posts:          svc.Posts,
		comments:       svc.Comments,
		relationships:  svc.Relationships,
		notifications:  svc.Notifications,
		audit:          svc.Audit,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	auth := s.AuthRequired()

	users := api.Group("/users")
	users.Post("/", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.CreateUser)
	// Specific /:id/:resource routes before the generic /:id route
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUser)
	users.Delete("/:id", auth, s.DeleteUser)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", auth, middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", auth, s.ToggleLike)
	posts.Get("/:id/likes", s.GetLikes)
	posts.Post("/:id/comments", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id/comments", s.GetComments)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", auth, s.DeletePost)

	comments := api.Group("/comments")
	comments.Post("/:id/replies", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_reply"), s.CreateReply)
	comments.Get("/:id/replies", s.GetReplies)
	comments.Delete("/:id", auth, s.DeleteComment)

	api.Delete("/replies/:id", auth, s.DeleteReply)

	follows := api.Group("/follows", auth)
	follows.Post("/:userId", middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.Follow)
	follows.Delete("/:userId", s.Unfollow)

	notes := api.Group("/notifications", auth)
	notes.Get("/", s.GetNotifications)
	notes.Patch("/:id/read", s.MarkNotificationRead)
	notes.Delete("/:id", s.DeleteNotification)

	// Browsers cannot set headers on websocket upgrades, so the stream
	// authenticates with a single-use ticket instead of the bearer token.
	ws := api.Group("/ws")
	ws.Post("/ticket", auth, s.IssueStreamTicket)
	ws.Get("/notifications", s.TicketRequired(), s.NotificationStream())

	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/posts/pending", s.GetPendingPosts)
	admin.Get("/posts/approved", s.GetApprovedPosts)
	admin.Get("/posts/stats", s.GetPostStats)
	admin.Post("/posts/:id/approve", s.ApprovePost)
	admin.Post("/posts/:id/reject", s.RejectPost)
	admin.Patch("/posts/:id/owner", s.ReassignPostOwner)
	admin.Get("/moderation-logs", s.GetModerationLogs)
	admin.Post("/audit", s.RunAudit)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "reelhub API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and cache health. The cache is optional,
// so only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus != "healthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and blocks serving on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams(ctx)
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if closer, ok := s.assets.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			middleware.Logger.Error("error closing asset store", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}

// closeStreams stops the Redis subscriber and closes every websocket.
func (s *Server) closeStreams(ctx context.Context) {
	if s.stopStreams != nil {
		s.stopStreams()
	}
	if s.hub != nil {
		_ = s.hub.Shutdown(ctx)
	}
}
