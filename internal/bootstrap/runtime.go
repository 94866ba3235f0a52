// Package bootstrap prepares the process runtime shared by every command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"creditfeed/internal/cache"
	"creditfeed/internal/config"
	"creditfeed/internal/database"
	"creditfeed/internal/featureflags"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"
	"creditfeed/internal/repository"
	"creditfeed/internal/supplier"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Runtime holds the connections a command needs.
type Runtime struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Flags         *featureflags.Manager
	ShutdownTrace func(context.Context) error
}

// InitRuntime connects to the database and Redis, sets up tracing and
// ensures the development admin exists when configured.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel, os.Stdout)

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "creditfeed-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampler,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client means Redis was unreachable; callers degrade to memory.
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := ensureDevAdmin(cfg, db); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	return &Runtime{
		DB:            db,
		Redis:         rdb,
		Flags:         featureflags.NewManager(cfg.FeatureFlags),
		ShutdownTrace: shutdown,
	}, nil
}

// Suppliers builds the configured content suppliers, each wrapped with the
// mock fallback.
func Suppliers(cfg *config.Config, rdb *redis.Client, flags *featureflags.Manager) []supplier.Supplier {
	reddit := supplier.NewReddit(supplier.RedditOptions{
		BaseURL:   cfg.RedditBaseURL,
		Subreddit: cfg.RedditSubreddit,
		UserAgent: cfg.RedditUserAgent,
		Timeout:   cfg.SupplierTimeout(),
	})
	twitter := supplier.NewTwitter(supplier.TwitterOptions{
		BaseURL:     cfg.TwitterBaseURL,
		BearerToken: cfg.TwitterBearerToken,
		Query:       cfg.TwitterQuery,
		RateBuffer:  cfg.TwitterRateBuffer,
		Quota:       supplier.NewQuotaTracker(rdb, models.SourceTwitter, cfg.TwitterMonthlyCap),
		Timeout:     cfg.SupplierTimeout(),
	})
	return []supplier.Supplier{
		supplier.WithFallback(twitter, flags),
		supplier.WithFallback(reddit, flags),
	}
}

// Close releases the runtime's connections.
func (r *Runtime) Close(ctx context.Context) {
	if r.ShutdownTrace != nil {
		if err := r.ShutdownTrace(ctx); err != nil {
			middleware.Logger.Warn("Failed to flush traces", "error", err)
		}
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}

func ensureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapAdmin {
		return nil
	}

	username := strings.TrimSpace(cfg.DevAdminUsername)
	if username == "" {
		username = "creditfeed_admin"
	}
	email := models.NormalizeEmail(cfg.DevAdminEmail)
	if email == "" {
		email = "admin@creditfeed.local"
	}
	if cfg.DevAdminPassword == "" {
		return fmt.Errorf("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var admin models.User
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				Role:     models.RoleAdmin,
				Credits:  models.DefaultCredits,
			}
			return repository.NewUserRepository(tx).Create(context.Background(), &admin)
		case findErr != nil:
			return findErr
		default:
			return repository.NewUserRepository(tx).SetRole(context.Background(), admin.ID, models.RoleAdmin)
		}
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("Development admin bootstrap ensured", "email", email)
	return nil
}
