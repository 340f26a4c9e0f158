package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitStderrOnly(t *testing.T) {
	cfg := DefaultConfig()
	log, level, err := Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, zapcore.InfoLevel, level.Level())
	log.Info("hello")
}

func TestInitWithFileRotation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "kaze.log")
	log, _, err := Init(cfg)
	require.NoError(t, err)
	log.Infow("writing to rotated file", "ok", true)
	require.NoError(t, log.Sync())

	assert.FileExists(t, cfg.File)
}

func TestAtomicLevelIsMutable(t *testing.T) {
	cfg := DefaultConfig()
	_, level, err := Init(cfg)
	require.NoError(t, err)

	level.SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
}
