package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsNeedStorage(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	t.Setenv("CCX_USE_MEMORY", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Solana.ConfirmTimeout)
	assert.Equal(t, "@every 1m", cfg.Sync.Schedule)
	assert.NotEmpty(t, cfg.Solana.ProgramID)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "ccx.yaml", `
solana:
  rpc_url: http://localhost:8899
  confirm_timeout: 15s
storage:
  postgres_dsn: postgres://file
  clickhouse_dsn: clickhouse://file
sync:
  workers: 2
  issuer: 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
log:
  format: console
`)
	t.Setenv("CCX_POSTGRES_DSN", "postgres://env")
	t.Setenv("CCX_SYNC_WORKERS", "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8899", cfg.Solana.RPCURL)
	assert.Equal(t, 15*time.Second, cfg.Solana.ConfirmTimeout)
	assert.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://file", cfg.Storage.ClickhouseDSN)
	assert.Equal(t, 6, cfg.Sync.Workers)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "solana: [unclosed"))
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("CCX_USE_MEMORY", "true")
	t.Setenv("CCX_CONFIRM_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "CCX_CONFIRM_TIMEOUT")
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "# comment\nCCX_TEST_A=\"quoted\"\nCCX_TEST_B=kept\nmalformed\n")
	t.Setenv("CCX_TEST_B", "existing")
	t.Setenv("CCX_TEST_A", "")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "quoted", os.Getenv("CCX_TEST_A"))
	assert.Equal(t, "existing", os.Getenv("CCX_TEST_B"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "none")))
}
