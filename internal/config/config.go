// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	// Outbound queue length per socket connection.
	SendBufferSize int `env:"WS_SEND_BUFFER" envDefault:"256" validate:"min=1"`
	// When true a socket handshake without a valid session token is refused.
	RequireHandshakeAuth bool `env:"WS_REQUIRE_TOKEN" envDefault:"true"`
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type     string `env:"DB_TYPE" envDefault:"memory" validate:"oneof=memory postgres sqlite mongo"`
	URI      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSL_MODE" envDefault:"require"`

	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/portal.db"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"sao_connect"`
}

// AuthConfig holds session token and bootstrap account settings
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	AdminEmail    string        `env:"ADMIN_EMAIL" validate:"omitempty,email"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
}

// Config holds the complete application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	Debug          bool     `env:"DEBUG"`
}

const devJWTSecret = "sao-connect-dev-secret"

var validate = validator.New()

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:                 8080,
		Host:                 "0.0.0.0",
		MetricsEnabled:       true,
		RequestTimeout:       5 * time.Second,
		SendBufferSize:       256,
		RequireHandshakeAuth: true,
	}
}

// LoadConfig loads configuration from a .env file (if any) and the environment
func LoadConfig() (*Config, error) {
	envLocations := []string{
		".env",       // Current directory
		"../../.env", // Project root when running from cmd/portal
		filepath.Join(os.Getenv("GOPATH"), "src/sao-connect/.env"),
	}
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env files
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Database.Type == "postgres" && cfg.Database.URI == "" {
		if cfg.Database.User == "" {
			return nil, fmt.Errorf("DB_USER environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		cfg.Database.URI = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Name,
			cfg.Database.SSLMode,
		)
	} else if cfg.Database.Type == "postgres" {
		cfg.Database.SSLMode = getSSLModeFromURI(cfg.Database.URI)
	}

	if cfg.Database.Type == "mongo" && cfg.Database.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required when DB_TYPE is mongo")
	}

	if cfg.Auth.JWTSecret == "" {
		if !cfg.Debug {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required unless DEBUG=true")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper function to extract sslmode from a DSN, defaults to "require"
func getSSLModeFromURI(uri string) string {
	if strings.Contains(uri, "sslmode=") {
		parts := strings.Split(uri, "?")
		if len(parts) > 1 {
			queryParams := strings.Split(parts[1], "&")
			for _, param := range queryParams {
				kv := strings.SplitN(param, "=", 2)
				if len(kv) == 2 && kv[0] == "sslmode" {
					return kv[1]
				}
			}
		}
	}
	return "require"
}
