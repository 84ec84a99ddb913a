package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRead_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.Read(dir, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "payouts.db", cfg.Database.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 12, cfg.Rewards.MonthsBack)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL())
	assert.True(t, cfg.Server.IsDevelopment())
}

func TestRead_FileThenEnvOverrides(t *testing.T) {
	// GIVEN: A config file, a .env file and a process env variable
	// WHEN: Reading
	// THEN: Env beats .env, .env beats the file, the file beats defaults

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9000
  cors:
    allow_origins: ["https://admin.example.com"]
database:
  path: /var/lib/payoutd/payouts.db
rewards:
  timezone: Asia/Tokyo
redis:
  enabled: true
  ttl_seconds: 60
`)
	envFile := writeFile(t, dir, ".env", "PAYOUT_LOGGING_LEVEL=debug\nPAYOUT_SERVER_PORT=9001\n")
	t.Setenv("PAYOUT_SERVER_PORT", "9090")
	t.Cleanup(func() { os.Unsetenv("PAYOUT_LOGGING_LEVEL") })

	cfg, err := config.Read(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/payoutd/payouts.db", cfg.Database.Path)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.CORS.AllowOrigins)
	assert.Equal(t, "Asia/Tokyo", cfg.Rewards.Timezone)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.TTL())
}

func TestRead_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 70000
logging:
  level: verbose
rewards:
  timezone: Mars/Olympus
`)

	_, err := config.Read(path, filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "rewards.timezone")
}

func TestRead_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "server: [unterminated")

	_, err := config.Read(path, filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}
