package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "harmony.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfigBody = `
[proxy]
id = "test-proxy"
store_dir = "/tmp/harmony-test"
`

const invalidConfigBody = `
[proxy]
id = ""
`

func TestValidateCommandAcceptsGoodConfig(t *testing.T) {
	path := writeTestConfig(t, validConfigBody)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"validate", "--config", path})
	assert.NoError(t, cmd.Execute())
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := writeTestConfig(t, invalidConfigBody)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"validate", "--config", path})
	assert.Error(t, cmd.Execute())
}

func TestServeCommandIsRegistered(t *testing.T) {
	cmd := newRootCmd()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())
}
