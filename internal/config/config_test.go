package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.Int("port", 8080, "")
	fs.String("store", "memory", "")
	fs.StringSlice("keywords", nil, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "seopulse:", cfg.Store.RedisPrefix)
	assert.Equal(t, "random", cfg.Sampler.Kind)
	assert.Equal(t, 10*time.Second, cfg.Sampler.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SEOPULSE_STORE_DRIVER", "sqlite")
	t.Setenv("SEOPULSE_SERVER_PORT", "9090")
	t.Setenv("SEOPULSE_SAMPLER_TIMEOUT", "3s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Sampler.Timeout)
}

func TestLoad_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	yaml := `
server:
  port: 7000
store:
  driver: redis
  redis_addr: cache:6379
site:
  keywords: [seo audit, local seo]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--config", path, "--port", "7100"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port, "explicit flag wins over file")
	assert.Equal(t, "redis", cfg.Store.Driver, "unset flag keeps file value")
	assert.Equal(t, "cache:6379", cfg.StoreOptions().RedisAddr)
	assert.Equal(t, []string{"seo audit", "local seo"}, cfg.Site.Keywords)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := Load(fs)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SEOPULSE_STORE_DRIVER", "postgres")
	_, err := Load(nil)
	assert.ErrorContains(t, err, "unknown store driver")

	t.Setenv("SEOPULSE_STORE_DRIVER", "memory")
	t.Setenv("SEOPULSE_SAMPLER_KIND", "browser")
	_, err = Load(nil)
	assert.ErrorContains(t, err, "unknown sampler")
}
