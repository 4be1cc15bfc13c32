package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 10*time.Second, cfg.Generator.Interval)
	assert.Equal(t, 2*time.Second, cfg.Generator.StartupDelay)
	assert.InDelta(t, 0.2, cfg.Generator.IncomingProbability, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Stream.Backoff.Initial)
	assert.Equal(t, 5*time.Minute, cfg.Stream.Backoff.Max)
	assert.Equal(t, 72*time.Hour, cfg.Pending.TTL)
	assert.Equal(t, time.Hour, cfg.Pending.SyntheticTTL)
	require.Len(t, cfg.Categories, 4)
	assert.Equal(t, "food", cfg.Categories[0].Name)
	assert.Equal(t, "🍔", cfg.Categories[0].Emoji)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("WALLETLEDGER_TELEGRAM_BOT_TOKEN", "secret")
	path := writeConfig(t, `
storage:
  backend: sqlite
  sqlite:
    path: /tmp/ledger.db
categories:
  - name: rent
    label: Rent
    emoji: "🏠"
stream:
  backoff:
    initial: 1s
    max: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Telegram.BotToken)
	require.NoError(t, cfg.RequireTelegram())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/ledger.db", cfg.Storage.SQLite.Path)
	require.Len(t, cfg.Categories, 1)
	assert.Equal(t, "rent", cfg.Categories[0].Name)
	assert.Equal(t, 30*time.Second, cfg.Stream.Backoff.Max)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "storage:\n  backend: redis\n",
		"postgres w/o dsn":  "storage:\n  backend: postgres\n",
		"bad format":        "wallets:\n  address_format: btc\n",
		"bad range":         "generator:\n  min_amount: 5\n  max_amount: 1\n",
		"underscore":        "categories:\n  - name: eating_out\n",
		"events w/o url":    "events:\n  enabled: true\n  amqp_url: \"\"\n",
		"backoff inverted":  "stream:\n  backoff:\n    initial: 1m\n    max: 1s\n",
		"probability range": "generator:\n  incoming_probability: 1.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestRequireTelegram(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)
	require.Error(t, cfg.RequireTelegram())
}
