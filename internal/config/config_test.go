package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:               "production",
		DBSSLMode:         "require",
		JWTSecret:         "secure-secret-at-least-32-chars-long",
		DBPassword:        "secure-password",
		Port:              "8080",
		FeedFetchLimit:    5,
		TwitterMonthlyCap: 100,
		TwitterRateBuffer: 10,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default jwt secret", func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" }},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }},
		{"dev admin bootstrap", func(c *Config) { c.DevBootstrapAdmin = true }},
		{"fetch limit too high", func(c *Config) { c.FeedFetchLimit = 500 }},
		{"negative rate buffer", func(c *Config) { c.TwitterRateBuffer = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{}
	assert.Equal(t, 5*time.Second, c.StorageTimeout())
	assert.Equal(t, 10*time.Second, c.SupplierTimeout())
	assert.Zero(t, c.FeedRefreshInterval())

	c.StorageTimeoutSeconds = 2
	c.SupplierTimeoutSeconds = 3
	c.FeedRefreshIntervalMinutes = 15
	assert.Equal(t, 2*time.Second, c.StorageTimeout())
	assert.Equal(t, 3*time.Second, c.SupplierTimeout())
	assert.Equal(t, 15*time.Minute, c.FeedRefreshInterval())
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "programming", c.RedditSubreddit)
	assert.Equal(t, "tech", c.TwitterQuery)
	assert.Equal(t, 100, c.TwitterMonthlyCap)
	assert.Equal(t, 10, c.TwitterRateBuffer)
	assert.Equal(t, 5, c.FeedFetchLimit)
}
