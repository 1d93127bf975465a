// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Email       EmailConfig
	SMS         SMSConfig
	Reminder    ReminderConfig
	Payment     PaymentConfig
	AWS         AWSConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ReadTimeout    int
	WriteTimeout   int
	IdleTimeout    int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	RetryDelay   time.Duration
}

type SMSConfig struct {
	AccountSID         string
	AuthToken          string
	FromNumber         string
	APIBaseURL         string
	DefaultCountryCode string
	RetryDelay         time.Duration
}

// ReminderConfig drives the expiration reminder engine. Timezone is the
// canonical zone for all calendar-day window computations; mixing zones
// between runs would shift day boundaries, so it is set exactly once here.
type ReminderConfig struct {
	CronSecret     string
	Timezone       string
	DailySpec      string
	DigestSpec     string
	BackfillSpec   string
	MaxRetries     int
	SoonThreshold  int // days at or under which a license is "expiring soon"
	DigestHorizon  int // days ahead covered by the weekly digest
}

type PaymentConfig struct {
	StripeSecretKey string
	StripePricePro  string
	SuccessURL      string
	CancelURL       string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Host:           getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:    getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "permitwatch"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "reminders@permitwatch.io"),
			FromName:     getEnv("FROM_NAME", "PermitWatch"),
			RetryDelay:   getEnvAsDuration("EMAIL_RETRY_DELAY", 2*time.Second),
		},
		SMS: SMSConfig{
			AccountSID:         getEnv("SMS_ACCOUNT_SID", ""),
			AuthToken:          getEnv("SMS_AUTH_TOKEN", ""),
			FromNumber:         getEnv("SMS_FROM_NUMBER", ""),
			APIBaseURL:         getEnv("SMS_API_BASE_URL", "https://api.twilio.com/2010-04-01"),
			DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "1"),
			RetryDelay:         getEnvAsDuration("SMS_RETRY_DELAY", 1*time.Second),
		},
		Reminder: ReminderConfig{
			CronSecret:    getEnv("CRON_SECRET", ""),
			Timezone:      getEnv("REMINDER_TIMEZONE", "UTC"),
			DailySpec:     getEnv("REMINDER_DAILY_SPEC", "0 9 * * *"),
			DigestSpec:    getEnv("REMINDER_DIGEST_SPEC", "0 8 * * 1"),
			BackfillSpec:  getEnv("REMINDER_BACKFILL_SPEC", "30 8 * * 0"),
			MaxRetries:    getEnvAsInt("REMINDER_MAX_RETRIES", 3),
			SoonThreshold: getEnvAsInt("REMINDER_SOON_THRESHOLD", 30),
			DigestHorizon: getEnvAsInt("REMINDER_DIGEST_HORIZON", 90),
		},
		Payment: PaymentConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			StripePricePro:  getEnv("STRIPE_PRICE_PRO", ""),
			SuccessURL:      getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/billing/success"),
			CancelURL:       getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/billing"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "permitwatch-documents"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Reminder.CronSecret == "" && c.Environment == "production" {
		return fmt.Errorf("CRON_SECRET is required in production")
	}

	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", c.Reminder.Timezone, err)
	}

	return nil
}

// ReminderLocation resolves the canonical reminder time zone. Validate has
// already checked the name, so failures here fall back to UTC.
func (c *Config) ReminderLocation() *time.Location {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
