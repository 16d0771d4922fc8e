package config

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	cfg.Session.Secret = "a-long-enough-secret-for-the-tests"
	cfg.Session.SealKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	return cfg
}

func TestDefaultsValidateOnceSecretsAreSet(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, validate(cfg))

	assert.Equal(t, "https://api.bahirandelivery.cloud", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.Poller.NotificationCap)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Session.Secret = ""
	cfg.Session.SealKey = base64.StdEncoding.EncodeToString([]byte("short"))
	cfg.Database.Driver = "mysql"
	cfg.Notify.Telegram.Token = "123:abc"

	err := validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"SESSION_SECRET", "SESSION_SEAL_KEY", "DB_DRIVER", "TELEGRAM_CHAT_ID"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGetListSplitsCommaSeparatedValues(t *testing.T) {
	v := viper.New()
	v.Set("kafka.brokers", "b1:9092, b2:9092,,")
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, getList(v, "kafka.brokers"))
}
