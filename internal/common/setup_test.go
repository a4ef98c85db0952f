package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rewards-ledger-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	logger, cleanup := InitializeLogger(models.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Debug("ledger ready", zap.Int64("user_id", 7))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"ledger ready"`)
	assert.Contains(t, string(data), `"user_id":7`)
}

func TestInitializeLoggerLevel(t *testing.T) {
	logger, cleanup := InitializeLogger(models.LogConfig{Level: "warn"})
	defer cleanup()
	defer zap.ReplaceGlobals(zap.NewNop())

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("REWARDS_TEST_PRESENT", "x")
	t.Setenv("REWARDS_TEST_ABSENT", "")

	assert.NoError(t, RequireEnv("REWARDS_TEST_PRESENT"))
	err := RequireEnv("REWARDS_TEST_PRESENT", "REWARDS_TEST_ABSENT")
	assert.ErrorContains(t, err, "REWARDS_TEST_ABSENT")
}

func TestIsIgnorableSyncError(t *testing.T) {
	assert.True(t, isIgnorableSyncError(errors.New("sync /dev/stderr: inappropriate ioctl for device")))
	assert.False(t, isIgnorableSyncError(errors.New("disk full")))
}
