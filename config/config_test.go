package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.Heartbeat)
	assert.Equal(t, 100, cfg.Server.MaxRooms)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Game.MaxPlayers)
	assert.Equal(t, 3, cfg.Game.MaxLives)
	assert.Equal(t, 10, cfg.Game.MaxRounds)
	assert.Equal(t, 20*time.Second, cfg.Game.AskingTimeout)
	assert.InDelta(t, 0.60, cfg.Game.TypeMix["trivia"], 0.0001)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":9999"
game:
  max_players: 4
  asking_timeout: 5s
database:
  driver: gorm
  postgres:
    host: db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTPAddress)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Equal(t, 5*time.Second, cfg.Game.AskingTimeout)
	assert.Equal(t, "gorm", cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Game.MaxLives)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TRIVIA_GAME_MAX_ROUNDS", "3")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Game.MaxRounds)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("game: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
