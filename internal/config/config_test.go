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
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.False(t, cfg.AllowProxy)
	assert.Equal(t, 5, cfg.InitialSessionPoolSize)
	assert.Equal(t, 3, cfg.ConcurrencyControl.InitialConcurrent)
	assert.Equal(t, 2, cfg.ConcurrencyControl.ScaleIncrement)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"allow_proxy": true,
		"initial_session_pool_size": 2,
		"concurrent_requests_control": {
			"initial_concurrent": 1,
			"scale_up_delay": 0.5,
			"scale_increment": 1
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.AllowProxy)
	assert.Equal(t, 2, cfg.InitialSessionPoolSize)
	assert.Equal(t, 500*time.Millisecond, cfg.ConcurrencyControl.ScaleUpDelayDuration())
}

func TestLoadPartialFileKeepsRemainingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"initial_session_pool_size": 9}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.InitialSessionPoolSize)
	assert.Equal(t, 3, cfg.ConcurrencyControl.InitialConcurrent)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsIncoherentValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"initial_session_pool_size": 0}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASINFETCH_ALLOW_PROXY", "true")
	t.Setenv("ASINFETCH_POOL_SIZE", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.True(t, cfg.AllowProxy)
	assert.Equal(t, 7, cfg.InitialSessionPoolSize)
}
