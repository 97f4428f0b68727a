package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
// Channel secrets may be absent: the affected channel is then inert.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Optional Redis for stale push token suppression
	RedisURL    string
	SuppressTTL time.Duration

	// Brand shown in notification titles and subjects
	Brand string

	// Pipeline workers share one in-process queue
	Workers           int
	RateLimit         int
	LookupConcurrency int

	// Sweeper re-enqueues queued rows whose change notification was missed
	SweepInterval time.Duration
	SweepGrace    time.Duration

	// Per-target redelivery
	RetryInterval       time.Duration
	MaxDeliveryAttempts int
	RetryBackoff        []time.Duration

	// Maximum attempts to re-establish the LISTEN connection before giving up
	ListenReconnectMax int

	ProviderTimeout time.Duration
	SMTP            SMTPConfig
	Twilio          TwilioConfig
	FCM             FCMConfig
}

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Missing names the SMTP variables that are unset.
func (c SMTPConfig) Missing() []string {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.Port <= 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if c.User == "" {
		missing = append(missing, "SMTP_USER")
	}
	if c.Pass == "" {
		missing = append(missing, "SMTP_PASS")
	}
	return missing
}

func (c SMTPConfig) Enabled() bool { return len(c.Missing()) == 0 }

// Sender is the From address: SMTP_FROM, or the SMTP user when unset.
func (c SMTPConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

// TwilioConfig configures the SMS channel. From is either a phone number or
// a messaging service id (MG...).
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// Missing names the Twilio variables that are unset.
func (c TwilioConfig) Missing() []string {
	var missing []string
	if c.AccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.From == "" {
		missing = append(missing, "TWILIO_FROM")
	}
	return missing
}

func (c TwilioConfig) Enabled() bool { return len(c.Missing()) == 0 }

// FCMConfig configures the push channel. With a server key the sender uses
// the legacy multicast endpoint; otherwise it authenticates with Google
// application default credentials against the HTTP v1 API of ProjectID
// (falling back to the credentials' own project).
type FCMConfig struct {
	Endpoint  string
	ServerKey string
	BaseURL   string
	ProjectID string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getPositiveDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL:    getEnv("REDIS_URL", ""),
		SuppressTTL: getDuration("TOKEN_SUPPRESS_TTL", 24*time.Hour),

		Brand: getEnv("BRAND", "LRP"),

		Workers:           getInt("WORKERS", 4),
		RateLimit:         getInt("RATE_LIMIT_PER_CHANNEL", 20),
		LookupConcurrency: getInt("LOOKUP_CONCURRENCY", 8),

		SweepInterval: getPositiveDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepGrace:    getDuration("SWEEP_GRACE", 2*time.Minute),

		RetryInterval:       getPositiveDuration("RETRY_INTERVAL", 10*time.Second),
		MaxDeliveryAttempts: getInt("MAX_DELIVERY_ATTEMPTS", 4),
		RetryBackoff: []time.Duration{
			getPositiveDuration("RETRY_BACKOFF_1", 30*time.Second),
			getPositiveDuration("RETRY_BACKOFF_2", 2*time.Minute),
			getPositiveDuration("RETRY_BACKOFF_3", 10*time.Minute),
		},

		ListenReconnectMax: getInt("LISTEN_RECONNECT_MAX", 10),

		ProviderTimeout: getPositiveDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", ""),
			Port: getInt("SMTP_PORT", 587),
			User: getEnv("SMTP_USER", ""),
			Pass: getEnv("SMTP_PASS", ""),
			From: getEnv("SMTP_FROM", ""),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_FROM", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		FCM: FCMConfig{
			Endpoint:  getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
			ServerKey: getEnv("FCM_SERVER_KEY", ""),
			BaseURL:   getEnv("FCM_BASE_URL", "https://fcm.googleapis.com"),
			ProjectID: getEnv("FCM_PROJECT_ID", ""),
		},
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getPositiveDuration is getDuration for values that feed tickers and
// timeouts, where zero or negative would panic or disable the bound.
func getPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	if d := getDuration(key, defaultVal); d > 0 {
		return d
	}
	return defaultVal
}
