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
	Paystack    PaystackConfig
	License     LicenseConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: "sqlite" (embedded, cgo),
	// "sqlite-pure" (embedded, pure Go) or "postgres".
	Driver       string
	Path         string
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

type PaystackConfig struct {
	SecretKey     string
	PlanCode      string
	WebhookSecret string
	UseMock       string
	// TrustedIPs is the comma-separated allowlist of gateway source
	// addresses, used when no webhook secret is configured.
	TrustedIPs    []string
	TrustLoopback bool
	Timeout       int
}

type LicenseConfig struct {
	ValidationToken      string
	AllowLocalValidation bool
	ValidityDays         int
	SweepInterval        time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			Path:         getEnv("DATABASE_PATH", "./data/licenses.db"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "rankbeam_licenses"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Paystack: PaystackConfig{
			SecretKey:     getEnv("PAYSTACK_SECRET_KEY", ""),
			PlanCode:      getEnv("PAYSTACK_PLAN_CODE", ""),
			WebhookSecret: getEnv("PAYSTACK_WEBHOOK_SECRET", ""),
			UseMock:       getEnv("PAYSTACK_USE_MOCK", ""),
			TrustedIPs:    getEnvAsList("PAYSTACK_TRUSTED_IPS", "52.31.139.75,52.49.173.169,52.214.14.220"),
			TrustLoopback: getEnvAsBool("PAYSTACK_TRUST_LOOPBACK", false),
			Timeout:       getEnvAsInt("PAYSTACK_TIMEOUT", 15),
		},
		License: LicenseConfig{
			ValidationToken:      getEnv("LICENSE_API_TOKEN", ""),
			AllowLocalValidation: getEnvAsBool("LICENSE_ALLOW_LOCAL", false),
			ValidityDays:         getEnvAsInt("LICENSE_VALIDITY_DAYS", 30),
			SweepInterval:        getEnvAsDuration("LICENSE_SWEEP_INTERVAL", time.Hour),
		},
	}

	return config, config.Validate()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.License.ValidationToken == "" {
			return fmt.Errorf("LICENSE_API_TOKEN is required in production")
		}
		if c.License.AllowLocalValidation {
			return fmt.Errorf("LICENSE_ALLOW_LOCAL must not be enabled in production")
		}
		if c.Paystack.TrustLoopback {
			return fmt.Errorf("PAYSTACK_TRUST_LOOPBACK must not be enabled in production")
		}
		if c.Paystack.SecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY is required in production")
		}
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite-pure", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.License.ValidityDays <= 0 {
		return fmt.Errorf("LICENSE_VALIDITY_DAYS must be positive")
	}

	return nil
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
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

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
