package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: development
db:
  url: postgres://localhost/test
nats:
  url: nats://127.0.0.1:4222
  subject_prefix: walletstream
watchlist:
  type: badger
  badger:
    directory: /tmp/watchlist
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, uint64(10_000), cfg.Filter.DustLamports)
	assert.Equal(t, "walletstream_monitored_users_evm", cfg.Watchlist.Lists.EVM)
	assert.Equal(t, "walletstream_monitored_users_sol", cfg.Watchlist.Lists.Solana)
	assert.Equal(t, 360, cfg.Tokens.ListTTLMinutes)
	assert.Equal(t, 1100, cfg.Tokens.SearchMinIntervalMillis)
	assert.Equal(t, int64(300), cfg.Streams.TimestampMaxAgeSeconds)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
db:
  url: postgres://localhost/test
nats:
  url: nats://127.0.0.1:4222
  subject_prefix: walletstream
watchlist:
  type: badger
filter:
  dust_lamports: 50000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, uint64(50_000), cfg.Filter.DustLamports)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
environment: staging
db:
  url: postgres://localhost/test
nats:
  url: nats://127.0.0.1:4222
  subject_prefix: walletstream
watchlist:
  type: badger
`)

	_, err := Load(path)
	assert.Error(t, err, "environment must be production or development")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
