package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("INKPOST_API_URL", "http://api.local:8080/")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://api.local:8080", cfg.Client.APIURL)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.GeminiModel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("RECOVERY_TTL", "not-a-duration")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("AI_PROVIDER", "OpenAI")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Hour, cfg.Auth.RecoveryTTL)
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
	assert.Equal(t, "openai", cfg.AI.Provider)
}
