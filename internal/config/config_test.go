// internal/config/config_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("LICENSE_CONFLICT_RETRIES", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Licensing.ConflictRetries)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "pq")
	t.Setenv("LICENSE_CONFLICT_RETRIES", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_ADMIN_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pq", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Licensing.ConflictRetries)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimit.AdminRPS)
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Database:    DatabaseConfig{Driver: "pgx", Password: "secret"},
		JWT:         JWTConfig{SecretKey: defaultJWTSecret},
		Stripe:      StripeConfig{WebhookSecret: "whsec_test"},
		Licensing:   LicensingConfig{ConflictRetries: 3},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = "rotated"
	assert.NoError(t, cfg.Validate())

	cfg.Stripe.WebhookSecret = ""
	assert.Error(t, cfg.Validate())

	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Database.Password = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "mysql"}, Licensing: LicensingConfig{ConflictRetries: 1}}
	assert.Error(t, cfg.Validate())
}
