package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Scrape.Concurrency)
	require.Equal(t, "skuscraper/0.1", cfg.Scrape.UserAgent)
	require.Equal(t, 250, cfg.Catalog.PageSize)
	require.True(t, cfg.Logging.Development)

	require.Equal(t, 40*time.Second, cfg.FetchTimeout())
	require.Equal(t, 30*time.Second, cfg.ParseTimeout())
	require.Equal(t, 250*time.Millisecond, cfg.ScrapeDelay())
	require.Equal(t, 100*time.Millisecond, cfg.CatalogPageDelay())
	require.Equal(t, 2*time.Second, cfg.CatalogRetryBackoff())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
scrape:
  concurrency: 8
  user_agent: "custom-bot/1.0"
catalog:
  page_size: 100
logging:
  development: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Scrape.Concurrency)
	require.Equal(t, "custom-bot/1.0", cfg.Scrape.UserAgent)
	require.Equal(t, 100, cfg.Catalog.PageSize)
	require.False(t, cfg.Logging.Development)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Server.Port = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Scrape.Concurrency = -1
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Catalog.PageSize = 500
	require.Error(t, bad.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
