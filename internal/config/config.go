package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the storefront API.
type Config struct {
	Port int

	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	EndpointsFile   string

	SessionSecret string
	SessionTTL    time.Duration

	DatabaseURL string
	CartSealKey [32]byte

	AMQPURL   string
	AMQPQueue string

	LogLevel  string
	LogFormat string

	CORSOrigins  []string
	CookieSecure bool
}

// Load reads envFile (when present) into the process environment and
// builds a Config from it. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		UpstreamBaseURL: strings.TrimRight(os.Getenv("UPSTREAM_BASE_URL"), "/"),
		EndpointsFile:   os.Getenv("ENDPOINTS_FILE"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPQueue:       envOr("AMQP_QUEUE", "storefront.notifications"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(envOr("APP_PORT", "8080")); err != nil {
		return nil, fmt.Errorf("config: APP_PORT: %w", err)
	}
	if cfg.UpstreamTimeout, err = time.ParseDuration(envOr("UPSTREAM_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("config: UPSTREAM_TIMEOUT: %w", err)
	}
	if cfg.SessionTTL, err = time.ParseDuration(envOr("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("config: SESSION_TTL: %w", err)
	}

	if cfg.CookieSecure, err = strconv.ParseBool(envOr("COOKIE_SECURE", "true")); err != nil {
		return nil, fmt.Errorf("config: COOKIE_SECURE: %w", err)
	}

	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if key := os.Getenv("CART_SEAL_KEY"); key != "" {
		b, err := hex.DecodeString(key)
		if err != nil || len(b) != len(cfg.CartSealKey) {
			return nil, fmt.Errorf("config: CART_SEAL_KEY must be %d hex-encoded bytes", len(cfg.CartSealKey))
		}
		copy(cfg.CartSealKey[:], b)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.UpstreamBaseURL == "" {
		return errors.New("config: UPSTREAM_BASE_URL is required")
	}
	if c.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: APP_PORT out of range: %d", c.Port)
	}
	if c.DatabaseURL != "" && c.CartSealKey == ([32]byte{}) {
		return errors.New("config: CART_SEAL_KEY is required when DATABASE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
