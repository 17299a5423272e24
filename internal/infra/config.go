package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"bpp"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"bpp"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"brokenpicturephone"`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"5000"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Object store (Backblaze B2, S3-compatible API)
	B2KeyID          string `env:"B2_KEY_ID"`
	B2ApplicationKey string `env:"B2_APPLICATION_KEY"`
	B2BucketName     string `env:"B2_BUCKET_NAME" envDefault:"brokenpicturephone"`
	B2Region         string `env:"B2_REGION" envDefault:"us-east-005"`
	B2Endpoint       string `env:"B2_ENDPOINT" envDefault:"https://s3.us-east-005.backblazeb2.com"`
	B2PublicHost     string `env:"B2_PUBLIC_HOST" envDefault:"f005.backblazeb2.com"`

	// Import
	ImportUploadConcurrency int   `env:"IMPORT_UPLOAD_CONCURRENCY" envDefault:"4"`
	ImportMaxBytes          int64 `env:"IMPORT_MAX_BYTES" envDefault:"67108864"`

	// Daily challenge
	DailyExcludedCharacters []string `env:"DAILY_EXCLUDED_CHARACTERS" envSeparator:","`
	DailyCacheSize          int      `env:"DAILY_CACHE_SIZE" envDefault:"64"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string `env:"KAFKA_TOPIC_PREFIX" envDefault:"bpp"`

	// Guards
	AdminLoginRateLimit int `env:"ADMIN_LOGIN_RATE_LIMIT" envDefault:"10"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig loads an optional .env file and parses environment variables into a Config.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.ImportUploadConcurrency < 1 {
		return fmt.Errorf("IMPORT_UPLOAD_CONCURRENCY must be at least 1, got %d", c.ImportUploadConcurrency)
	}
	if n := c.longestPanelURL(); n > domain.MaxURLLength {
		return fmt.Errorf("B2_PUBLIC_HOST and B2_BUCKET_NAME are too long: panel urls could reach %d characters, limit is %d", n, domain.MaxURLLength)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.B2KeyID == "" || c.B2ApplicationKey == "" {
		return fmt.Errorf("B2_KEY_ID and B2_APPLICATION_KEY are required")
	}
	return nil
}

// longestPanelURL is the length of a panel URL uploaded into the longest
// allowed folder.
func (c *Config) longestPanelURL() int {
	const keySuffix = len("/") + 36 + len(".png") // "/<uuid>.png"
	return len("https://"+c.B2PublicHost+"/file/"+c.B2BucketName+"/") + domain.MaxFolderLength + keySuffix
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// ExcludedCharacters returns the trimmed, non-empty daily challenge exclusions.
func (c *Config) ExcludedCharacters() []string {
	out := make([]string, 0, len(c.DailyExcludedCharacters))
	for _, name := range c.DailyExcludedCharacters {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
