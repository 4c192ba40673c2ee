package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 256, cfg.Server.SendBufferSize)
	assert.True(t, cfg.Server.RequireHandshakeAuth)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestFromEnvBuildsPostgresURI(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_USER", "portal")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "sao")
	t.Setenv("DB_SSL_MODE", "disable")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://portal:pw@db:5432/sao?sslmode=disable", cfg.Database.URI)
}

func TestFromEnvPostgresURIWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@h/db?sslmode=verify-full&application_name=x")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "verify-full", cfg.Database.SSLMode)
}

func TestFromEnvRejectsInvalidSettings(t *testing.T) {
	t.Run("missing postgres credentials", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_TYPE", "postgres")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DB_USER")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_TYPE", "cassandra")
		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("missing secret outside debug", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_TYPE", "mongo")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "MONGO_URI")
	})
}

func TestFromEnvDebugSecretAndOrigins(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEBUG", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173,https://portal.example.edu")
	t.Setenv("WS_REQUIRE_TOKEN", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"http://localhost:5173", "https://portal.example.edu"}, cfg.AllowedOrigins)
	assert.False(t, cfg.Server.RequireHandshakeAuth)
}
