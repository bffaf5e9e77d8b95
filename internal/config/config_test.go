package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reservations")
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "webhook-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Booking.GracePeriod)
	assert.Equal(t, "@every 1m", cfg.Booking.SweepSchedule)
	assert.Equal(t, 3*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, 2025, cfg.Subscription.LaunchDate.Year())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOOKING_GRACE_PERIOD", "5m")
	t.Setenv("DATABASE_LOCK_TIMEOUT", "1500ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SUBSCRIPTION_LAUNCH_DATE", "2026-03-15")
	t.Setenv("RABBITMQ_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Booking.GracePeriod)
	assert.Equal(t, 1500*time.Millisecond, cfg.Database.LockTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), cfg.Subscription.LaunchDate)
	assert.True(t, cfg.RabbitMQ.Enabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOOKING_SWEEP_BATCH_SIZE", "lots")
	t.Setenv("PAYMENT_GATEWAY_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Booking.SweepBatchSize)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://x"},
			JWT:      JWTConfig{Secret: "a", RefreshSecret: "b"},
			Payment:  PaymentConfig{WebhookSecret: "w", Currency: "INR"},
			Booking:  BookingConfig{GracePeriod: time.Minute, SweepBatchSize: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"Missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"Missing JWT secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"Missing webhook secret", func(c *Config) { c.Payment.WebhookSecret = "" }, "PAYMENT_WEBHOOK_SECRET"},
		{"Foreign currency", func(c *Config) { c.Payment.Currency = "USD" }, "only INR"},
		{"Zero grace period", func(c *Config) { c.Booking.GracePeriod = 0 }, "BOOKING_GRACE_PERIOD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
