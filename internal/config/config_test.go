// File: internal/config/config_test.go
package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "slipstream", cfg.Logger.ServiceName)

	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.True(t, cfg.Network.ForceHTTP2)
	assert.NotEmpty(t, cfg.Network.UserAgent)

	assert.Equal(t, 60*time.Second, cfg.Router.CacheTTL)
	assert.Equal(t, 64, cfg.Router.CacheMaxEntries)
	assert.Equal(t, 65*time.Millisecond, cfg.Router.PrefetchDebounce)
	assert.Contains(t, cfg.Router.RunOnceScripts, "app.js")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yaml := `
logger:
  level: debug
  format: json
router:
  cache_ttl: 90s
  prefetch_debounce: 100ms
  run_once_scripts:
    - boot.js
`
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 90*time.Second, cfg.Router.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Router.PrefetchDebounce)
	assert.Equal(t, []string{"boot.js"}, cfg.Router.RunOnceScripts)

	// Untouched sections keep their defaults.
	assert.Equal(t, 64, cfg.Router.CacheMaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
}

func TestLoad_EmptyViperKeepsDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
