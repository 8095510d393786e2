package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/kernel/config"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 0.7, cfg.CRV.RequiredConfidence)
	assert.Equal(t, time.Hour, cfg.Approval.TokenTTL)
	assert.Equal(t, 3, cfg.Reflexion.MaxFixAttempts)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 7\ncrv:\n  required_confidence: 0.9\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 0.9, cfg.CRV.RequiredConfidence)
	assert.Equal(t, time.Hour, cfg.Approval.TokenTTL, "fields absent from the file keep their default value")
}

func TestLoadEnvVarOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  max_attempts: 7\n"), 0o600))

	t.Setenv("KERNEL_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("KERNEL_APPROVAL_TOKEN_TTL", "2h")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retry.MaxAttempts, "env var must win over the YAML file value")
	assert.Equal(t, 2*time.Hour, cfg.Approval.TokenTTL)
}

func TestLoadInvalidEnvValueIsIgnored(t *testing.T) {
	t.Setenv("KERNEL_RETRY_MAX_ATTEMPTS", "not-a-number")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default().Retry.MaxAttempts, cfg.Retry.MaxAttempts)
}
