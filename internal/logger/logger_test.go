package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	log, err := New(NewDefaultFileLogConfig())
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_ParsesLevel(t *testing.T) {
	cfg := NewDefaultFileLogConfig()
	cfg.LogLevel = "debug"

	log, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	cfg := NewDefaultFileLogConfig()
	cfg.LogLevel = "shouting"

	log, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_CreatesLogFileDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultFileLogConfig()
	cfg.LogFile = filepath.Join(dir, "nested", "resolver.log")

	log, err := New(cfg)
	require.NoError(t, err)

	log.Info().Msg("boot")
	_, err = os.Stat(filepath.Join(dir, "nested"))
	assert.NoError(t, err)
}
