package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, NewDefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	c := NewDefaultConfig()
	c.InitStep = 0
	assert.Error(t, c.Validate())

	c = NewDefaultConfig()
	c.MaxStep = c.InitStep - 1
	assert.Error(t, c.Validate())

	c = NewDefaultConfig()
	c.CooldownCeiling = NewDuration(c.CooldownFloor.Duration - time.Millisecond)
	assert.Error(t, c.Validate())

	c = NewDefaultConfig()
	c.TargetGenerationTime = NewDuration(0)
	assert.Error(t, c.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bulk.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
init-step = 256
max-step = 4096
cooldown-floor = "5ms"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, c.InitStep)
	assert.Equal(t, 4096, c.MaxStep)
	assert.Equal(t, 5*time.Millisecond, c.CooldownFloor.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, NewDefaultConfig().MaxRetries, c.MaxRetries)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
