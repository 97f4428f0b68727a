package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lrp")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("BRAND", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "LRP", cfg.Brand)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute}, cfg.RetryBackoff)
	assert.False(t, cfg.Twilio.Enabled())
	assert.Contains(t, cfg.Twilio.Missing(), "TWILIO_ACCOUNT_SID")
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lrp")
	t.Setenv("WORKERS", "9")
	t.Setenv("SWEEP_GRACE", "90s")
	t.Setenv("READ_TIMEOUT", "not-a-duration")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.SweepGrace)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout, "invalid values fall back to the default")
}

func TestTwilioConfig_Missing(t *testing.T) {
	c := config.TwilioConfig{AccountSID: "AC1"}
	assert.Equal(t, []string{"TWILIO_AUTH_TOKEN", "TWILIO_FROM"}, c.Missing())

	c.AuthToken, c.From = "tok", "+15550001111"
	assert.Empty(t, c.Missing())
	assert.True(t, c.Enabled())
}

func TestSMTPConfig_Sender(t *testing.T) {
	c := config.SMTPConfig{Host: "smtp.lrp.com", Port: 587, User: "ops@lrp.com", Pass: "pw"}
	assert.True(t, c.Enabled())
	assert.Equal(t, "ops@lrp.com", c.Sender())

	c.From = "LRP Dispatch <noreply@lrp.com>"
	assert.Equal(t, "LRP Dispatch <noreply@lrp.com>", c.Sender())
}

func TestLoad_NonPositiveIntervalsFallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lrp")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("RETRY_INTERVAL", "-5s")
	t.Setenv("PROVIDER_TIMEOUT", "0")
	t.Setenv("RETRY_BACKOFF_2", "-1m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.RetryInterval)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 2*time.Minute, cfg.RetryBackoff[1])
}

func TestLoad_FCMDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lrp")
	t.Setenv("FCM_PROJECT_ID", "lrp-prod")
	t.Setenv("FCM_BASE_URL", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://fcm.googleapis.com", cfg.FCM.BaseURL)
	assert.Equal(t, "lrp-prod", cfg.FCM.ProjectID)
}
