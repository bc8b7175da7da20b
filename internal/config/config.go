package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Firebase configuration (used when DATABASE_DRIVER=firestore)
	Firebase FirebaseConfig

	// JWT configuration
	JWT JWTConfig

	// Ferry reseller API configuration
	Ferry FerryConfig

	// Session configuration
	Session SessionConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig

	// Cron configuration
	Cron CronConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string // postgres, firestore, memory
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
	SSLMode            string        // appended when the URL has no sslmode, left alone when empty
	MaxHeldLocks       int           // wallet locks pinning a connection at once
	LockWait           time.Duration // longest wait for a wallet lock
}

// FirebaseConfig holds Firestore connection settings
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// FerryConfig holds the Barkota reseller API configuration
type FerryConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	TokenBuffer       time.Duration
	ReconcileGrace    time.Duration
	ReconcileAttempts int
	ReconcileBackoff  time.Duration
	SearchWindowDays  int
}

// SessionConfig holds session-scoped cache configuration
type SessionConfig struct {
	ChargesTTL time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	TokenEncryptionKey string // hex encoded, 32 bytes
	EnableRequestLog   bool
	EnableAuditLog     bool
}

// CronConfig holds scheduled job configuration
type CronConfig struct {
	Enabled              bool
	TokenRefreshSchedule string
	ChargesSweepSchedule string
	TokenRefreshWindow   time.Duration
}

// MetricsConfig holds prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	environment := getEnv("ENVIRONMENT", "development")

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: environment,
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
			SSLMode:            getEnv("DATABASE_SSLMODE", ""),
			LockWait:           getEnvAsDuration("DATABASE_LOCK_WAIT", 30*time.Second),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "ferry-api"),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Ferry: FerryConfig{
			BaseURL:           getEnv("FERRY_API_BASE_URL", "https://barkota-reseller-php-staging-4kl27j34za-uc.a.run.app"),
			ClientID:          ferryCredential(environment, "FERRY_CLIENT_ID", "FERRY_DEV_CLIENT_ID"),
			ClientSecret:      ferryCredential(environment, "FERRY_PW", "FERRY_DEV_PW"),
			Timeout:           time.Duration(getEnvAsInt("API_TIMEOUT", 30000)) * time.Millisecond,
			TokenBuffer:       getEnvAsDuration("FERRY_TOKEN_BUFFER", 5*time.Minute),
			ReconcileGrace:    getEnvAsDuration("FERRY_RECONCILE_GRACE", time.Second),
			ReconcileAttempts: getEnvAsInt("FERRY_RECONCILE_ATTEMPTS", 3),
			ReconcileBackoff:  getEnvAsDuration("FERRY_RECONCILE_BACKOFF", time.Second),
			SearchWindowDays:  getEnvAsInt("FERRY_SEARCH_WINDOW_DAYS", 6),
		},
		Session: SessionConfig{
			ChargesTTL: getEnvAsDuration("SESSION_CHARGES_TTL", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Correlation-ID"}),
		},
		Security: SecurityConfig{
			TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
			EnableRequestLog:   getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:     getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
		Cron: CronConfig{
			Enabled:              getEnvAsBool("CRON_ENABLED", true),
			TokenRefreshSchedule: getEnv("CRON_TOKEN_REFRESH_SCHEDULE", "*/5 * * * *"),
			ChargesSweepSchedule: getEnv("CRON_CHARGES_SWEEP_SCHEDULE", "*/10 * * * *"),
			TokenRefreshWindow:   getEnvAsDuration("CRON_TOKEN_REFRESH_WINDOW", 10*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	// Leave at least half the pool for the work done under wallet locks
	config.Database.MaxHeldLocks = getEnvAsInt("DATABASE_MAX_HELD_LOCKS", config.Database.MaxConnections/2)

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		if c.Database.MaxConnections > 0 && (c.Database.MaxHeldLocks < 1 || c.Database.MaxHeldLocks >= c.Database.MaxConnections) {
			return fmt.Errorf("DATABASE_MAX_HELD_LOCKS must be between 1 and DATABASE_MAX_CONNECTIONS-1")
		}
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore driver")
		}
	case "memory":
		if c.Server.Environment == "production" {
			return fmt.Errorf("the memory driver is not allowed in production")
		}
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres', 'firestore' or 'memory')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Ferry.BaseURL == "" {
		return fmt.Errorf("FERRY_API_BASE_URL is required")
	}

	if c.Ferry.ClientID == "" || c.Ferry.ClientSecret == "" {
		return fmt.Errorf("ferry API credentials are required (FERRY_CLIENT_ID / FERRY_PW)")
	}

	if c.Ferry.ReconcileAttempts < 1 {
		return fmt.Errorf("FERRY_RECONCILE_ATTEMPTS must be at least 1")
	}

	key, err := hex.DecodeString(c.Security.TokenEncryptionKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
	}

	return nil
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ferryCredential reads the production variable, preferring the FERRY_DEV_* override outside production
func ferryCredential(environment, key, devKey string) string {
	if environment != "production" {
		if v := os.Getenv(devKey); v != "" {
			return v
		}
	}
	return getEnv(key, "")
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
