// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	StorageTimeoutSeconds      int `mapstructure:"STORAGE_TIMEOUT_SECONDS"`
	SupplierTimeoutSeconds     int `mapstructure:"SUPPLIER_TIMEOUT_SECONDS"`
	FeedRefreshIntervalMinutes int `mapstructure:"FEED_REFRESH_INTERVAL_MINUTES"`
	FeedFetchLimit             int `mapstructure:"FEED_FETCH_LIMIT"`

	RedditBaseURL      string `mapstructure:"REDDIT_BASE_URL"`
	RedditSubreddit    string `mapstructure:"REDDIT_SUBREDDIT"`
	RedditUserAgent    string `mapstructure:"REDDIT_USER_AGENT"`
	TwitterBaseURL     string `mapstructure:"TWITTER_BASE_URL"`
	TwitterBearerToken string `mapstructure:"TWITTER_BEARER_TOKEN"`
	TwitterQuery       string `mapstructure:"TWITTER_QUERY"`
	TwitterMonthlyCap  int    `mapstructure:"TWITTER_MONTHLY_LIMIT"`
	TwitterRateBuffer  int    `mapstructure:"TWITTER_RATE_BUFFER"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	DevBootstrapAdmin bool   `mapstructure:"DEV_BOOTSTRAP_ADMIN"`
	DevAdminUsername  string `mapstructure:"DEV_ADMIN_USERNAME"`
	DevAdminEmail     string `mapstructure:"DEV_ADMIN_EMAIL"`
	DevAdminPassword  string `mapstructure:"DEV_ADMIN_PASSWORD"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough for development.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "creditfeed")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "supplier_mock_fallback=on")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("STORAGE_TIMEOUT_SECONDS", 5)
	viper.SetDefault("SUPPLIER_TIMEOUT_SECONDS", 10)
	viper.SetDefault("FEED_REFRESH_INTERVAL_MINUTES", 0)
	viper.SetDefault("FEED_FETCH_LIMIT", 5)

	viper.SetDefault("REDDIT_BASE_URL", "https://www.reddit.com")
	viper.SetDefault("REDDIT_SUBREDDIT", "programming")
	viper.SetDefault("REDDIT_USER_AGENT", "creditfeed/1.0")
	viper.SetDefault("TWITTER_BASE_URL", "https://api.twitter.com")
	viper.SetDefault("TWITTER_BEARER_TOKEN", "")
	viper.SetDefault("TWITTER_QUERY", "tech")
	viper.SetDefault("TWITTER_MONTHLY_LIMIT", 100)
	viper.SetDefault("TWITTER_RATE_BUFFER", 10)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	viper.SetDefault("DEV_BOOTSTRAP_ADMIN", false)
	viper.SetDefault("DEV_ADMIN_USERNAME", "creditfeed_admin")
	viper.SetDefault("DEV_ADMIN_EMAIL", "admin@creditfeed.local")
	viper.SetDefault("DEV_ADMIN_PASSWORD", "")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.FeedFetchLimit < 0 || c.FeedFetchLimit > 100 {
		return errors.New("FEED_FETCH_LIMIT must be between 0 and 100")
	}
	if c.TwitterRateBuffer < 0 || c.TwitterMonthlyCap < 0 {
		return errors.New("TWITTER_MONTHLY_LIMIT and TWITTER_RATE_BUFFER must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DevBootstrapAdmin {
			return errors.New("DEV_BOOTSTRAP_ADMIN must be disabled in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// StorageTimeout bounds every datastore call made on behalf of a request.
func (c *Config) StorageTimeout() time.Duration {
	if c.StorageTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StorageTimeoutSeconds) * time.Second
}

// SupplierTimeout bounds one source fetch during a feed refresh.
func (c *Config) SupplierTimeout() time.Duration {
	if c.SupplierTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SupplierTimeoutSeconds) * time.Second
}

// FeedRefreshInterval is the scheduled refresh period; zero disables the scheduler.
func (c *Config) FeedRefreshInterval() time.Duration {
	if c.FeedRefreshIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.FeedRefreshIntervalMinutes) * time.Minute
}
