package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RACETIME_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("RACETIME_OPERATOR_KEY", "operator")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "racetime.db", cfg.DatabasePath)
	assert.Equal(t, 15, cfg.MaxRecordsPerTeam)
	assert.Equal(t, 50, cfg.MaxBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("RACETIME_JWT_SECRET", "")
	t.Setenv("RACETIME_OPERATOR_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("RACETIME_JWT_SECRET", "short")
	t.Setenv("RACETIME_OPERATOR_KEY", "operator")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 16 bytes")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RACETIME_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("RACETIME_OPERATOR_KEY", "operator")
	t.Setenv("RACETIME_MAX_RECORDS_PER_TEAM", "10")
	t.Setenv("RACETIME_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRecordsPerTeam)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}
