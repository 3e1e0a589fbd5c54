package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.SettleDelay)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "npm run build", cfg.Build.Command)
	assert.Equal(t, "dist", cfg.Build.DefaultOutput)
	assert.Contains(t, cfg.Build.OutputDirs, ".next")
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	content := `
settle_delay = "500ms"

[build]
command = "yarn build"
default_output = "public"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runlet.toml"), []byte(content), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "yarn build", cfg.Build.Command)
	assert.Equal(t, "public", cfg.Build.DefaultOutput)
	// Untouched keys keep their defaults.
	assert.Equal(t, 64, cfg.QueueCapacity)
}

func TestHiddenFileTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".runlet.toml"),
		[]byte(`migrations_dir = "db/migrations"`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runlet.toml"),
		[]byte(`migrations_dir = "other"`), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("RUNLET_SETTLE_DELAY", "5s")
	t.Setenv("RUNLET_BUILD__COMMAND", "pnpm build")

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SettleDelay)
	assert.Equal(t, "pnpm build", cfg.Build.Command)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runlet.toml"),
		[]byte(`queue_capacity = 0`), 0644))

	_, err := config.Load(dir)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runlet.toml"),
		[]byte(`settle_delay = [`), 0644))

	_, err := config.Load(dir)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}
