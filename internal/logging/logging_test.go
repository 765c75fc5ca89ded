package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/reframe-journal/internal/config"
)

func TestSetup_Level(t *testing.T) {
	closer, err := Setup(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	closer, err := Setup(config.LoggingConfig{Level: "chatty"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetup_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reframe.log")

	closer, err := Setup(config.LoggingConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Info().Str("session_id", "abc").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"abc"`)
}
