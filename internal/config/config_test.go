package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = "k1:" + strings.Repeat("x", 32)

func setMinimal(t *testing.T) {
	t.Helper()
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_KEYS", testKey)
}

func TestLoad_Defaults(t *testing.T) {
	setMinimal(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 24*time.Hour, cfg.ActivationTTL)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, "bcrypt", cfg.PasswordHasher)
	require.Len(t, cfg.JWTKeys, 1)
	assert.Equal(t, "k1", cfg.JWTKeys[0].ID)
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("JWT_KEYS", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"APP_PORT", "JWT_KEYS", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_MalformedValues(t *testing.T) {
	setMinimal(t)
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	t.Setenv("BCRYPT_COST", "high")
	t.Setenv("JWT_KEYS", "k1:tiny")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
	assert.Contains(t, err.Error(), "BCRYPT_COST")
	assert.Contains(t, err.Error(), "JWT_KEYS")
	assert.NotContains(t, err.Error(), "tiny")
}

func TestValidate(t *testing.T) {
	setMinimal(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.StoreDriver = "postgres"
	cfg.PasswordHasher = "md5"
	cfg.BcryptCost = 2
	cfg.AccessTTL = 8 * 24 * time.Hour
	err = cfg.Validate()
	require.Error(t, err)
	for _, s := range []string{"STORE_DRIVER", "PASSWORD_HASHER", "BCRYPT_COST", "shorter than REFRESH_TOKEN_TTL"} {
		assert.Contains(t, err.Error(), s)
	}
}

func TestAMQPURLFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	assert.Equal(t, "amqp://u:p@mq:5672/", amqpURL())

	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	assert.Equal(t, "amqp://primary/", amqpURL())
}

func TestLoadMailer(t *testing.T) {
	t.Setenv("MAIL_DRIVER", "smtp")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("MAIL_FROM", "")
	_, err := LoadMailer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_HOST")
	assert.Contains(t, err.Error(), "MAIL_FROM")

	t.Setenv("SMTP_HOST", "smtp.local")
	t.Setenv("MAIL_FROM", "noreply@x.com")
	cfg, err := LoadMailer()
	require.NoError(t, err)
	assert.Equal(t, "587", cfg.Mail.SMTPPort)
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.GreaterOrEqual(t, c.TTL, 2*time.Second)
	assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "2")
	c := LoadRedisConfig()
	assert.Equal(t, "redis:6379", c.Addr)
	assert.Equal(t, 2, c.DB)
}
