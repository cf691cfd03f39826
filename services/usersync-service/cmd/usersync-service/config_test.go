package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUsersyncEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/medserial")
	t.Setenv("USERSYNC_WEBHOOK_SECRET", "whsec")
	t.Setenv("USERSYNC_FORWARD_URL", "")
	t.Setenv("USERSYNC_FORWARD_TIMEOUT", "")
	t.Setenv("PORT", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setUsersyncEnv(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "whsec", cfg.WebhookSecret)
	assert.Empty(t, cfg.Forward.URL)
	assert.Equal(t, 5*time.Second, cfg.Forward.Timeout)
}

func TestLoadConfigRequiresSecretAndDatabase(t *testing.T) {
	setUsersyncEnv(t)
	t.Setenv("USERSYNC_WEBHOOK_SECRET", "")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "USERSYNC_WEBHOOK_SECRET")

	setUsersyncEnv(t)
	t.Setenv("DATABASE_URL", "")
	_, err = loadConfig()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadConfigForward(t *testing.T) {
	setUsersyncEnv(t)
	t.Setenv("USERSYNC_FORWARD_URL", "https://hooks.example/users")
	t.Setenv("USERSYNC_FORWARD_TOKEN", "tok")
	t.Setenv("USERSYNC_FORWARD_TIMEOUT", "2s")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example/users", cfg.Forward.URL)
	assert.Equal(t, "tok", cfg.Forward.Token)
	assert.Equal(t, 2*time.Second, cfg.Forward.Timeout)
}
