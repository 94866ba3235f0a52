// Package server contains the HTTP handlers for the creditfeed API.
package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "creditfeed/docs" // swagger docs
	"creditfeed/internal/cache"
	"creditfeed/internal/config"
	"creditfeed/internal/featureflags"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/policy"
	"creditfeed/internal/repository"
	"creditfeed/internal/service"
	"creditfeed/internal/supplier"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "creditfeed-api"
	tokenAudience = "creditfeed-client"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config             *config.Config
	db                 *gorm.DB
	redis              *redis.Client
	promMiddleware     *fiberprometheus.FiberPrometheus
	userRepo           repository.UserRepository
	featureFlags       *featureflags.Manager
	userService        *service.UserService
	ledger             *service.CreditLedger
	interactionService *service.InteractionService
	rewardService      *service.RewardService
	feedService        *service.FeedService
	statsService       *service.StatsService
	now                func() time.Time
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient runs the server without caching, token revocation or
// shared rate limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, suppliers []supplier.Supplier) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("config and database are required")
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)

	var contentOpts []repository.ContentOption
	if !flags.On(featureflags.FeedCache) {
		contentOpts = append(contentOpts, repository.WithoutFeedCache())
	}
	userRepo := repository.NewUserRepository(db)
	contentRepo := repository.NewContentRepository(db, contentOpts...)
	creditRepo := repository.NewCreditRepository(db)

	fetchLimit := cfg.FeedFetchLimit
	if fetchLimit <= 0 {
		fetchLimit = service.DefaultFetchLimit
	}

	ledger := service.NewCreditLedger(db, userRepo, creditRepo)
	s := &Server{
		config:             cfg,
		db:                 db,
		redis:              redisClient,
		promMiddleware:     middleware.InitMetrics("creditfeed-api"),
		userRepo:           userRepo,
		featureFlags:       flags,
		userService:        service.NewUserService(userRepo),
		ledger:             ledger,
		interactionService: service.NewInteractionService(db, contentRepo, ledger, cfg.StorageTimeout()),
		rewardService:      service.NewRewardService(db, userRepo, ledger, cfg.StorageTimeout()),
		feedService: service.NewFeedService(contentRepo, userRepo, suppliers, service.FeedServiceOptions{
			FetchLimit:      fetchLimit,
			SupplierTimeout: cfg.SupplierTimeout(),
			StorageTimeout:  cfg.StorageTimeout(),
		}),
		statsService: service.NewStatsService(db, userRepo, contentRepo, creditRepo),
		now:          time.Now,
	}
	return s, nil
}

// FeedService exposes the refresh orchestrator so the process can schedule it.
func (s *Server) FeedService() *service.FeedService {
	return s.feedService
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

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

	app.Use(middleware.TracingMiddleware())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/me", s.AuthRequired(), s.GetMe)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public feed browsing
	feed := api.Group("/feed")
	feed.Get("/", s.GetFeed)
	feed.Get("/saved", s.AuthRequired(), s.GetSavedFeed)
	feed.Post("/refresh", s.AuthRequired(), middleware.RateLimit(s.redis, 5, time.Minute, "feed_refresh"), s.RefreshFeed)
	// Specific /items/:id/:action routes before the generic item route
	feed.Post("/items/:id/save", s.AuthRequired(), s.SaveItem)
	feed.Delete("/items/:id/save", s.AuthRequired(), s.UnsaveItem)
	feed.Post("/items/:id/report", s.AuthRequired(),
		middleware.RateLimit(s.redis, 10, time.Minute, "report"), s.ReportItem)
	feed.Post("/items/:id/share", s.AuthRequired(), s.ShareItem)
	feed.Get("/items/:id", s.GetFeedItem)

	protected := api.Group("", s.AuthRequired())

	profile := protected.Group("/profile")
	profile.Get("/", s.GetProfile)
	profile.Put("/", s.UpdateProfile)

	credits := protected.Group("/credits")
	credits.Get("/balance", s.GetBalance)
	credits.Get("/history", s.GetCreditHistory)
	credits.Post("/award/profile", s.AwardProfileCompletion)
	credits.Post("/adjust", s.AdminRequired(policy.ActionAdjustCredits), s.AdjustCredits)

	admin := protected.Group("/admin")
	admin.Get("/feature-flags", s.AdminRequired(policy.ActionManageUsers), s.GetFeatureFlags)

	adminUsers := admin.Group("/users", s.AdminRequired(policy.ActionManageUsers))
	adminUsers.Get("/", s.GetAllUsers)
	adminUsers.Get("/:id/reconcile", s.ReconcileUser)
	adminUsers.Get("/:id", s.GetUserDetail)

	stats := admin.Group("/stats", s.AdminRequired(policy.ActionViewStats))
	stats.Get("/users", s.GetUserStats)
	stats.Get("/feed", s.GetFeedStats)
	stats.Get("/credits", s.GetCreditStats)

	reported := admin.Group("/reported", s.AdminRequired(policy.ActionModerateContent))
	reported.Get("/", s.GetReportedContent)
	reported.Put("/:id/clear", s.ClearReports)
	reported.Delete("/:id", s.DeleteReportedContent)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   s.now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional: the
// service degrades to uncached reads and in-memory quota counting without it.
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

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"sources": s.feedService.Sources(),
		"time":    s.now(),
	})
}

// AdminRequired returns middleware that rejects callers who may not perform
// action. Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired(action policy.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return models.RespondWithAppError(c, err)
		}
		if !policy.CanPerform(policy.ActorFor(user), action) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if authHeader := c.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		},
			jwt.WithIssuer(tokenIssuer),
			jwt.WithAudience(tokenAudience),
		)
		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}
		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil || userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		jti, _ := claims["jti"].(string)
		if jti != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), cache.RevokedTokenKey(jti)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("userID", uint(userID))
		c.Locals("jti", jti)
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			c.Locals("tokenExpiresAt", exp.Time)
		}
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}
