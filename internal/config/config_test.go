package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tilecache/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[tile]
dir = "/var/lib/tiles"
style = "/etc/tilecache/osm.toml"

[server]
prefix = "maps/"
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Listen)
	require.Equal(t, "/maps", c.Server.Prefix)
	require.Equal(t, 30*time.Second, c.Server.ReadTimeout)
	require.Equal(t, "png", c.Tile.Format)
	require.Equal(t, int64(64<<20), c.Cache.MaxBytes)
	require.Equal(t, time.Minute, c.Cache.TTL)
	require.Equal(t, "info", c.Log.Level)
	require.True(t, c.Log.Terminal)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[tile]
style = "osm.toml"
`)
	t.Setenv("TILECACHE_TILE_DIR", "/srv/tiles")
	t.Setenv("TILECACHE_SERVER_LISTEN", "127.0.0.1:9000")
	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/tiles", c.Tile.Dir)
	require.Equal(t, "127.0.0.1:9000", c.Server.Listen)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, config.ErrNoConfig)

	_, err = config.Load(writeConfig(t, "[tile]\nstyle = \"osm.toml\"\n"))
	require.ErrorContains(t, err, "tile.dir")

	_, err = config.Load(writeConfig(t, "[tile]\ndir = \"/t\"\nstyle = \"s\"\nformat = \"webp\"\n"))
	require.ErrorContains(t, err, "tile.format")
}
