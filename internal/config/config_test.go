package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "#3b82f6", cfg.DefaultTaskColor)
	assert.Empty(t, cfg.Timezone)

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Timezone = "Asia/Tokyo"
	cfg.ExportOutput = "/tmp/exports"
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loaded.Timezone)
	assert.Equal(t, "/tmp/exports", loaded.ExportOutput)
}

func TestLoadExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.ExportOutput = "~/exports"
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports"), loaded.ExportOutput)
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "Asia/Tokyo"
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}

func TestDatabasePathUnderPunchcardDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".punchcard", "db", "punchcard.sqlite"), path)
}
