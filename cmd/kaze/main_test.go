package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMainDumpConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaze.toml")
	require.NoError(t, os.WriteFile(path, []byte("ident = 1\n"), 0o644))

	stdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	err = runMain(cliFlags{configPath: path, dumpConfig: true}, nil)
	require.NoError(t, w.Close())
	os.Stdout = stdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ident = 1")
}

func TestRunMainRequiresConfigPath(t *testing.T) {
	err := runMain(cliFlags{}, nil)
	assert.Error(t, err)
}

func TestInterruptedErrorMessageNamesSignal(t *testing.T) {
	err := interrupted{Signal: os.Interrupt}
	assert.Contains(t, err.Error(), "interrupt")
}
