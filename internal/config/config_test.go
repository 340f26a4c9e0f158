package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaze.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
ident = 7

[corral]
listen = "0.0.0.0:9999"

[[local]]
ident = 2
addr = "10.0.0.2:7701"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), cfg.Ident)
	assert.Equal(t, "0.0.0.0:9999", cfg.Corral.Listen)
	// Unset fields still come from DefaultConfig.
	assert.Equal(t, 4096, cfg.Corral.MaxConnections)
	require.Len(t, cfg.Local, 1)
	assert.Equal(t, uint32(2), cfg.Local[0].Ident)
}

func TestDumpRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ident = 3

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, out, "ident = 3")

	path := filepath.Join(t.TempDir(), "dumped.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Ident, reloaded.Ident)
	assert.Equal(t, cfg.Corral.Listen, reloaded.Corral.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
