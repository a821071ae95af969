package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRequests, cfg.Security.RateLimit.MaxRequests)
	assert.Equal(t, DefaultWindow, cfg.Security.RateLimit.Window.Duration())
	assert.Equal(t, DefaultMaxAccounts, cfg.Security.RateLimit.MaxAccounts)
	assert.Equal(t, int64(DefaultCacheBytes), cfg.Cache.MaxBytes.Int64())
	assert.Equal(t, DefaultRankingCron, cfg.Ranking.Cron)
	assert.Equal(t, DefaultPageSize, cfg.Ranking.PageSize)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, cfg.Server.PageTemplate, cfg.Cache.Mappings["main"])
}

func TestLoadParsesHumanFriendlyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  address: 127.0.0.1
  port: 8080
  db_path: /tmp/db
cache:
  max_bytes: 25MB
security:
  rate_limit:
    max_requests: 10
    window: 30s
    max_accounts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, "/tmp/db", cfg.Server.DBPath)
	assert.Equal(t, int64(25_000_000), cfg.Cache.MaxBytes.Int64())
	assert.Equal(t, 10, cfg.Security.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Security.RateLimit.Window.Duration())
	assert.Equal(t, 3, cfg.Security.RateLimit.MaxAccounts)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODESHARE_ADDR", "10.0.0.1")
	t.Setenv("CODESHARE_PORT", "9999")
	t.Setenv("CODESHARE_DB_PATH", "/var/lib/codeshare")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9999", cfg.Addr())
	assert.Equal(t, "/var/lib/codeshare", cfg.Server.DBPath)
}

func TestAddrWithEmbeddedPortWins(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Server.Address = ":4000"
	assert.Equal(t, ":4000", cfg.Addr())
}
