// Package config provides environment-driven configuration for production deployments
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ProductionConfig holds all configuration for the application
type ProductionConfig struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	JWT        JWTConfig
	AdPlatform AdPlatformConfig
	Scheduler  SchedulerConfig
	Admin      AdminConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// JWTConfig holds token signing settings
type JWTConfig struct {
	SecretKey       string
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AdPlatformConfig holds ad platform client settings
type AdPlatformConfig struct {
	// UseMock selects the local mock client instead of the HTTP client
	UseMock  bool
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// AdminConfig holds the bootstrap operator account created on first start
type AdminConfig struct {
	BootstrapUsername string
	BootstrapPassword string
	BootstrapEmail    string
}

// SchedulerConfig holds automation scheduler settings
type SchedulerConfig struct {
	Enabled            bool
	Interval           time.Duration
	RunLockTTL         time.Duration
	PendingApprovalTTL time.Duration
	LogDir             string
}

// LoadProductionConfig reads configuration from environment variables
func LoadProductionConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "adpilot"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "adpilot"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET_KEY", ""),
			Issuer:          getEnv("JWT_ISSUER", "adpilot"),
			Audience:        getEnv("JWT_AUDIENCE", "adpilot-admin"),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		AdPlatform: AdPlatformConfig{
			UseMock:  getEnvBool("AD_PLATFORM_USE_MOCK", false),
			BaseURL:  getEnv("AD_PLATFORM_BASE_URL", ""),
			APIToken: getEnv("AD_PLATFORM_API_TOKEN", ""),
			Timeout:  getEnvDuration("AD_PLATFORM_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getEnvBool("SCHEDULER_ENABLED", true),
			Interval:           getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
			RunLockTTL:         getEnvDuration("SCHEDULER_RUN_LOCK_TTL", 5*time.Minute),
			PendingApprovalTTL: getEnvDuration("SCHEDULER_PENDING_TTL", 72*time.Hour),
			LogDir:             getEnv("SCHEDULER_LOG_DIR", "data"),
		},
		Admin: AdminConfig{
			BootstrapUsername: getEnv("ADMIN_BOOTSTRAP_USERNAME", ""),
			BootstrapPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),
			BootstrapEmail:    getEnv("ADMIN_BOOTSTRAP_EMAIL", ""),
		},
	}
}

// ValidateProductionConfig checks that required settings are present
func ValidateProductionConfig(cfg *ProductionConfig) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if !cfg.AdPlatform.UseMock {
		if cfg.AdPlatform.BaseURL == "" {
			return fmt.Errorf("AD_PLATFORM_BASE_URL is required unless AD_PLATFORM_USE_MOCK is set")
		}
		if cfg.AdPlatform.APIToken == "" {
			return fmt.Errorf("AD_PLATFORM_API_TOKEN is required unless AD_PLATFORM_USE_MOCK is set")
		}
	}
	if cfg.Scheduler.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least one second")
	}
	return nil
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a fallback default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a fallback default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
