package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort             = "8080"
	defaultReturnURL        = "https://example.com/payments/return"
	defaultProviderTimeout  = 30 * time.Second
	defaultWebhookTolerance = 300 * time.Second
	defaultReconcileEvery   = time.Minute
	defaultStaleAfter       = 5 * time.Minute
)

var ErrMissingStripeKey = errors.New("STRIPE_SECRET_KEY is not set")

type Config struct {
	AppEnv  string
	AppPort string

	DBURL      string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	// JWTSecret signs the bearer tokens accepted by the payment API.
	JWTSecret string
	// InternalSecretKey lets trusted services bypass the public rate limits.
	InternalSecretKey string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	// StripeAPIURL overrides the API backend, e.g. for stripe-mock.
	StripeAPIURL string

	ReturnURL        string
	ProviderTimeout  time.Duration
	WebhookTolerance time.Duration

	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:               os.Getenv("APP_ENV"),
		AppPort:              getEnv("APP_PORT", defaultPort),
		DBURL:                os.Getenv("DB_URL"),
		DBHost:               os.Getenv("DB_HOST"),
		DBUser:               os.Getenv("DB_USER"),
		DBPassword:           os.Getenv("DB_PASSWORD"),
		DBName:               os.Getenv("DB_NAME"),
		DBPort:               getEnv("DB_PORT", "5432"),
		JWTSecret:            os.Getenv("SECRET_KEY"),
		InternalSecretKey:    os.Getenv("INTERNAL_SECRET_KEY"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeAPIURL:         os.Getenv("STRIPE_API_URL"),
		ReturnURL:            getEnv("PAYMENT_RETURN_URL", defaultReturnURL),
	}

	var err error
	if cfg.ProviderTimeout, err = getDuration("PROVIDER_TIMEOUT", defaultProviderTimeout); err != nil {
		return nil, err
	}
	if cfg.WebhookTolerance, err = getDuration("WEBHOOK_TOLERANCE", defaultWebhookTolerance); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", defaultReconcileEvery); err != nil {
		return nil, err
	}
	if cfg.ReconcileStaleAfter, err = getDuration("RECONCILE_STALE_AFTER", defaultStaleAfter); err != nil {
		return nil, err
	}

	if cfg.StripeSecretKey == "" {
		return nil, ErrMissingStripeKey
	}

	return cfg, nil
}

// DSN returns DB_URL, or a lib/pq keyword DSN assembled from the DB_* parts.
func (c *Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	if c.DBHost == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("45s") or plain seconds ("45").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
