package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8082", cfg.HTTP.Address)
	assert.Equal(t, "gs://freegle_backup_uk", cfg.Storage.Bucket)
	assert.Equal(t, []string{"db", "mailhog"}, cfg.Containers.Services)
	assert.Equal(t, "yesterday-", cfg.Containers.Prefix)
	assert.False(t, cfg.Restore.MonotonicProgress)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BACKUP_BUCKET", "gs://other-bucket/")
	t.Setenv("RESTORE_MONOTONIC_PROGRESS", "true")
	t.Setenv("CONTAINER_SERVICES", " db , ,redis")
	t.Setenv("INVENTORY_REFRESH_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gs://other-bucket", cfg.Storage.Bucket)
	assert.True(t, cfg.Restore.MonotonicProgress)
	assert.Equal(t, []string{"db", "redis"}, cfg.Containers.Services)
	assert.Empty(t, cfg.Inventory.RefreshSchedule)
}
