package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Weather.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Places.TTL)
	assert.Equal(t, 2, cfg.Weather.CellDecimals)
	assert.Equal(t, 1, cfg.Places.CellDecimals)
	assert.Equal(t, 25.0, cfg.Weather.AlertRadiusKm)
	assert.Equal(t, 20.0, cfg.Sampling.IntervalKm)
	assert.Equal(t, 3*time.Minute, cfg.Refresh.FastInterval)
	assert.Equal(t, 15*time.Minute, cfg.Refresh.DefaultInterval)
	assert.Equal(t, 10.0, cfg.Risk.WindModerateMs)
	assert.Equal(t, 200.0, cfg.Risk.VisibilityExtremeM)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DRIWET_SERVER__PORT", "9090")
	t.Setenv("DRIWET_WEATHER__API_KEY", "secret")
	t.Setenv("DRIWET_WEATHER__TTL", "90s")
	t.Setenv("DRIWET_RISK__WIND_HIGH_MS", "20")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, 90*time.Second, cfg.Weather.TTL)
	assert.Equal(t, 20.0, cfg.Risk.WindHighMs)

	// Untouched keys keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 25.0, cfg.Risk.WindExtremeMs)
}

func TestLoad_YAMLFile(t *testing.T) {
	yamlConfig := `
server:
  port: 8181
sampling:
  interval_km: 10
refresh:
  watched_routes:
    - id: hwy4-angels-arnold
      name: Hwy 4 - Angels Camp to Arnold
      origin:
        latitude: 38.0674
        longitude: -120.5402
      destination:
        latitude: 38.2458
        longitude: -120.3486
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Sampling.IntervalKm)
	require.Len(t, cfg.Refresh.WatchedRoutes, 1)
	assert.Equal(t, "hwy4-angels-arnold", cfg.Refresh.WatchedRoutes[0].ID)
	assert.Equal(t, 38.0674, cfg.Refresh.WatchedRoutes[0].Origin.Latitude)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o600))
	t.Setenv("DRIWET_SERVER__PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.Backend = "postgres"
	assert.Error(t, cfg.Validate(), "postgres backend requires a URL")
	cfg.Cache.PostgresURL = "postgres://localhost/driwet"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Sampling.IntervalKm = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Refresh.FastInterval = 20 * time.Minute
	assert.Error(t, cfg.Validate(), "fast cadence must not be slower than default")
}
