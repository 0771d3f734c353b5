package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "", cfg.Server.StaticDir)
	assert.Equal(t, 10, cfg.Game.MaxSessions)
	assert.Equal(t, 50, cfg.Game.MaxPlayers)
	assert.Equal(t, 20, cfg.Game.QuestionTimeSec)
	assert.Equal(t, 120, cfg.Game.ReconnectTimeoutSec)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_SESSIONS", "3")
	t.Setenv("MAX_PLAYERS", "7")
	t.Setenv("QUESTION_TIME_SEC", "15")
	t.Setenv("RECONNECT_TIMEOUT", "30")
	t.Setenv("STATIC_DIR", "./static")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "./static", cfg.Server.StaticDir)
	assert.Equal(t, 3, cfg.Game.MaxSessions)
	assert.Equal(t, 7, cfg.Game.MaxPlayers)
	assert.Equal(t, 15, cfg.Game.QuestionTimeSec)
	assert.Equal(t, 30, cfg.Game.ReconnectTimeoutSec)
	assert.Equal(t, 30*time.Second, cfg.Game.ReconnectTimeout())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_sessions")
}

func TestLoad_MissingFileTolerated(t *testing.T) {
	cfg, err := Load("testdata/does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Server.Port)
}
