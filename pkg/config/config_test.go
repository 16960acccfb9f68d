package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 200000, cfg.Scheduler.MaxSteps)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, "auto", cfg.Scheduler.Mode)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
	assert.InDelta(t, 0.1, cfg.Oracle.Temperature, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SnapshotTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/school.db")
	t.Setenv("SCHEDULER_MODE", "direct")
	t.Setenv("SCHEDULER_TIMEOUT", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/school.db", cfg.Database.SQLitePath)
	assert.Equal(t, "direct", cfg.Scheduler.Mode)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(".env", []byte("SCHEDULER_WORKERS=5\nORACLE_MODEL=gemini-test\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SCHEDULER_WORKERS")
		os.Unsetenv("ORACLE_MODEL")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scheduler.Workers)
	assert.Equal(t, "gemini-test", cfg.Oracle.Model)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
