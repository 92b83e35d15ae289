// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/dukerupert/giftlist/internal/access"
	billingstripe "github.com/dukerupert/giftlist/internal/billing/stripe"
	"github.com/dukerupert/giftlist/internal/purge"
	"github.com/dukerupert/giftlist/internal/storage"
)

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	BaseURL  string

	JWTSecret  string
	JWTIssuer  string
	CronSecret string

	TrialDays      int
	PaidAccessDays int
	ManualBilling  bool

	PurgeDefaultLimit int
	PurgeMaxLimit     int
	PurgeSchedule     string

	OriginPatterns []string

	Stripe billingstripe.Config
	S3     storage.Config

	PostmarkToken string
	FromEmail     string
}

// Load reads every setting and reports all invalid values together.
func Load() (*Config, error) {
	var errs error
	port := getenv("GIFTLIST_PORT", "8080")

	cfg := &Config{
		Port:     port,
		DBPath:   getenv("GIFTLIST_DB_PATH", "giftlist.db"),
		LogLevel: getenv("GIFTLIST_LOG_LEVEL", "info"),
		BaseURL:  strings.TrimRight(getenv("GIFTLIST_BASE_URL", "http://localhost:"+port), "/"),

		JWTSecret:  os.Getenv("GIFTLIST_JWT_SECRET"),
		JWTIssuer:  os.Getenv("GIFTLIST_JWT_ISSUER"),
		CronSecret: os.Getenv("GIFTLIST_CRON_SECRET"),

		TrialDays:      getenvInt("GIFTLIST_TRIAL_DAYS", access.DefaultTrialDays, &errs),
		PaidAccessDays: getenvInt("GIFTLIST_PAID_ACCESS_DAYS", access.DefaultPaidAccessDays, &errs),
		ManualBilling:  getenvBool("GIFTLIST_MANUAL_BILLING", false, &errs),

		PurgeDefaultLimit: getenvInt("GIFTLIST_PURGE_DEFAULT_LIMIT", purge.DefaultLimit, &errs),
		PurgeMaxLimit:     getenvInt("GIFTLIST_PURGE_MAX_LIMIT", purge.MaxLimit, &errs),
		PurgeSchedule:     lookupenv("GIFTLIST_PURGE_SCHEDULE", "@every 1h"),

		OriginPatterns: splitList(os.Getenv("GIFTLIST_ALLOWED_ORIGINS")),

		S3: storage.Config{
			Endpoint:  os.Getenv("GIFTLIST_S3_ENDPOINT"),
			Bucket:    os.Getenv("GIFTLIST_S3_BUCKET"),
			Region:    getenv("GIFTLIST_S3_REGION", "auto"),
			AccessKey: os.Getenv("GIFTLIST_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("GIFTLIST_S3_SECRET_KEY"),
		},

		PostmarkToken: os.Getenv("GIFTLIST_POSTMARK_TOKEN"),
		FromEmail:     os.Getenv("GIFTLIST_FROM_EMAIL"),
	}
	cfg.Stripe = billingstripe.Config{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PriceID:       os.Getenv("STRIPE_PRICE_ID"),
		SuccessURL:    cfg.BaseURL + "/{LOCALE}/lists/{LIST_ID}?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     cfg.BaseURL + "/{LOCALE}/lists/{LIST_ID}?checkout=cancelled",
	}

	if cfg.JWTSecret == "" {
		errs = multierr.Append(errs, errors.New("GIFTLIST_JWT_SECRET is required"))
	}
	if cfg.TrialDays <= 0 || cfg.PaidAccessDays <= 0 {
		errs = multierr.Append(errs, errors.New("trial and paid access days must be positive"))
	}
	if cfg.PurgeMaxLimit <= 0 || cfg.PurgeDefaultLimit <= 0 || cfg.PurgeDefaultLimit > cfg.PurgeMaxLimit {
		errs = multierr.Append(errs, fmt.Errorf("purge limits invalid: default %d, max %d", cfg.PurgeDefaultLimit, cfg.PurgeMaxLimit))
	}
	if errs != nil {
		return nil, fmt.Errorf("load config: %w", errs)
	}
	return cfg, nil
}

// StripeConfigured reports whether checkout sessions can be created.
func (c *Config) StripeConfigured() bool {
	return c.Stripe.Configured()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupenv is getenv, but an explicitly empty value is kept.
func lookupenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getenvInt(key string, def int, errs *error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getenvBool(key string, def bool, errs *error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
